package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"probchart/config"
	"probchart/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: probchart <command> [flags]

commands:
  games      list games (--status live|final|scheduled)
  watch      open live charts for one or more game ids
  grid       run a grid search and print its results
  simulate   run one backtest and print its trades
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)

	var run func(context.Context) error
	switch cmd {
	case "games":
		run = gamesCommand(fs, cfg, log)
	case "watch":
		run = watchCommand(fs, cfg, log)
	case "grid":
		run = gridCommand(fs, cfg, log)
	case "simulate":
		run = simulateCommand(fs, cfg, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = fs.Parse(args)

	if err := run(ctx); err != nil {
		log.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}
