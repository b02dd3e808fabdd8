package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"probchart/config"
	"probchart/internal/cache"
	"probchart/internal/export"
	"probchart/internal/gridsearch"
	"probchart/internal/stream"
	"probchart/internal/updater"
	"probchart/internal/view"
	"probchart/pkg/backend"
	"probchart/pkg/storage/postgres"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func newREST(cfg *config.Config) *backend.RESTClient {
	return backend.NewRESTClient(cfg.Backend.REST.BaseURL, cfg.Backend.REST.Timeout, cfg.Backend.REST.PageSize)
}

func wsOptions(cfg *config.Config) backend.WSOptions {
	return backend.WSOptions{
		HandshakeTimeout: cfg.Backend.WS.HandshakeTimeout,
		PingInterval:     cfg.Backend.WS.PingInterval,
		ReconnectDelay:   cfg.Backend.WS.ReconnectDelay,
	}
}

func gamesCommand(fs *pflag.FlagSet, cfg *config.Config, log *zap.Logger) func(context.Context) error {
	status := fs.String("status", "", "filter by game status")

	return func(ctx context.Context) error {
		rest := newREST(cfg)

		var rc cache.ResponseCache
		if cfg.Redis.Addr != "" {
			c, err := cache.NewRedisResponseCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, cfg.Redis.Prefix)
			if err != nil {
				log.Warn("redis cache disabled", zap.Error(err))
			} else {
				rc = c
				defer c.Close()
			}
		}

		raw, err := cache.Fetch(ctx, rc, "games:"+*status, func(ctx context.Context) (json.RawMessage, error) {
			return rest.ListGamesRaw(ctx, *status)
		})
		if err != nil {
			return fmt.Errorf("list games: %w", err)
		}
		games, err := backend.DecodeGameList(raw)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GAME\tSPORT\tAWAY\tHOME\tSTATUS\tSTART\tMARKETS")
		for _, g := range games {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				g.ID, g.Sport, g.AwayTeam, g.HomeTeam, g.Status, g.StartTime.Format(time.RFC3339), len(g.Markets))
		}
		return w.Flush()
	}
}

func watchCommand(fs *pflag.FlagSet, cfg *config.Config, log *zap.Logger) func(context.Context) error {
	duration := fs.Duration("duration", 0, "stop after this long (0 = until interrupted)")
	rotate := fs.Duration("rotate", time.Minute, "time spent on each game when several ids are given")
	exportPNG := fs.Bool("export", false, "write a PNG of each chart when leaving it")

	return func(ctx context.Context) error {
		ids := fs.Args()
		if len(ids) == 0 {
			return errors.New("watch: at least one game id is required")
		}
		if *duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *duration)
			defer cancel()
		}

		deps := view.Deps{
			REST:      newREST(cfg),
			WSBaseURL: cfg.Backend.WS.URL,
			WSOptions: wsOptions(cfg),
			Throttle:  cfg.Chart.Throttle,
			Logger:    log,
		}
		if cfg.Chart.Record {
			pg, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
			if err != nil {
				return fmt.Errorf("failed to connect to DB: %w", err)
			}
			defer pg.Close()
			deps.Mirror = func(gameID string) updater.Renderer {
				return postgres.NewRecorder(pg, gameID, log)
			}
		}

		manager := view.NewManager(deps)
		defer manager.Close()

		leave := func() {
			v := manager.Current()
			if v == nil || !*exportPNG {
				return
			}
			game := v.Game()
			name := fmt.Sprintf("%s_%s.png", game.ID, time.Now().UTC().Format("20060102T150405"))
			path, err := export.WriteFile(cfg.Export.Dir, name, v.Chart().All(), export.Options{
				Title:  fmt.Sprintf("%s @ %s", game.AwayTeam, game.HomeTeam),
				Width:  cfg.Export.Width,
				Height: cfg.Export.Height,
			})
			if err != nil {
				log.Warn("chart export failed", zap.Error(err))
				return
			}
			log.Info("chart exported", zap.String("path", path))
		}

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(ids) {
			leave()
			v, err := manager.Show(ctx, ids[i])
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			switchAt := time.After(*rotate)
			if len(ids) == 1 || *rotate <= 0 {
				switchAt = nil
			}
		WAIT:
			for {
				select {
				case <-ctx.Done():
					leave()
					return nil
				case <-switchAt:
					break WAIT
				case <-ticker.C:
					st := v.Stats()
					log.Info("chart status",
						zap.String("game", v.Game().ID),
						zap.Int("points", v.Chart().CountAll()),
						zap.Int64("applied", st.Applied),
						zap.Int64("stale", st.Stale),
						zap.Int("pending", st.Pending),
					)
				}
			}
		}
	}
}

func gridCommand(fs *pflag.FlagSet, cfg *config.Config, log *zap.Logger) func(context.Context) error {
	sport := fs.String("sport", "", "sport to sweep (e.g. nba)")
	games := fs.StringSlice("games", nil, "restrict to these game ids")
	startDate := fs.String("start", "", "first game date (YYYY-MM-DD)")
	endDate := fs.String("end", "", "last game date (YYYY-MM-DD)")
	params := fs.StringArray("param", nil, "name=v1,v2,... (repeatable)")
	pollOnly := fs.Bool("poll", false, "poll for completion instead of following the progress stream")

	return func(ctx context.Context) error {
		grid, err := parseGrid(*params)
		if err != nil {
			return err
		}
		opts := gridsearch.Options{
			WS:     wsOptions(cfg),
			Logger: log,
			OnProgress: func(p stream.Progress) {
				fmt.Fprintf(os.Stderr, "\r%d/%d %s", p.Completed, p.Total, p.Message)
			},
		}
		if !*pollOnly {
			opts.WSBaseURL = cfg.Backend.WS.URL
		}

		res, err := gridsearch.Run(ctx, newREST(cfg), backend.GridSearchRequest{
			Sport:      *sport,
			GameIDs:    *games,
			StartDate:  *startDate,
			EndDate:    *endDate,
			Parameters: grid,
		}, opts)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PARAMS\tTRADES\tWIN%\tROI\tPNL\tBRIER\tLOGLOSS\tSHARPE")
		for _, r := range res.Results {
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%.3f\t%.2f\t%.4f\t%.4f\t%.2f\n",
				formatParams(r.Params), r.Trades, r.WinRate*100, r.ROI, r.PnL, r.Brier, r.LogLoss, r.Sharpe)
		}
		if res.Best != nil {
			fmt.Fprintf(w, "best: %s\troi=%.3f\n", formatParams(res.Best.Params), res.Best.ROI)
		}
		return w.Flush()
	}
}

func simulateCommand(fs *pflag.FlagSet, cfg *config.Config, log *zap.Logger) func(context.Context) error {
	sport := fs.String("sport", "", "sport to simulate")
	games := fs.StringSlice("games", nil, "restrict to these game ids")
	params := fs.StringArray("param", nil, "name=value (repeatable)")

	return func(ctx context.Context) error {
		grid, err := parseGrid(*params)
		if err != nil {
			return err
		}
		fixed := make(map[string]float64, len(grid))
		for name, vals := range grid {
			if len(vals) != 1 {
				return fmt.Errorf("simulate: --param %s needs exactly one value", name)
			}
			fixed[name] = vals[0]
		}

		res, err := newREST(cfg).RunSimulation(ctx, backend.SimulationRequest{
			Sport:      *sport,
			GameIDs:    *games,
			Parameters: fixed,
		})
		if err != nil {
			return fmt.Errorf("run simulation: %w", err)
		}
		log.Debug("simulation finished", zap.Int("trades", len(res.Trades)))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GAME\tTICKER\tSIDE\tENTRY\tEXIT\tPNL")
		for _, t := range res.Trades {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n", t.GameID, t.Ticker, t.Side, t.EntryPrice, t.ExitPrice, t.PnL)
		}
		fmt.Fprintf(w, "total\t\t\t\t\t%.2f (roi %.3f, win %.1f%%, brier %.4f)\n", res.PnL, res.ROI, res.WinRate*100, res.Brier)
		return w.Flush()
	}
}

// parseGrid reads "name=v1,v2" flags into a parameter grid.
func parseGrid(flags []string) (map[string][]float64, error) {
	grid := make(map[string][]float64, len(flags))
	for _, f := range flags {
		name, list, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || list == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=v1,v2", f)
		}
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --param %q: %w", f, err)
			}
			grid[name] = append(grid[name], v)
		}
	}
	if len(grid) == 0 {
		return nil, errors.New("at least one --param is required")
	}
	return grid, nil
}

func formatParams(p map[string]float64) string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
