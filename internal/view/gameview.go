package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"probchart/internal/chartstore"
	"probchart/internal/stream"
	"probchart/internal/updater"
	"probchart/pkg/backend"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// max concurrent history requests per view
const historyConcurrency = 4

// Deps holds what a view needs from the outside.
type Deps struct {
	REST      *backend.RESTClient
	WSBaseURL string
	WSOptions backend.WSOptions
	Throttle  time.Duration // 0 uses updater.DefaultThrottle
	Logger    *zap.Logger

	// Mirror, when set, returns an extra renderer that receives every chart
	// write for the game (e.g. a Postgres recorder). Its failures are logged only.
	// A mirror that is an io.Closer is closed with the view.
	Mirror func(gameID string) updater.Renderer
}

// GameView is one open game chart: its series, the incremental updater
// feeding them, and the live stream.
type GameView struct {
	sessionID string
	game      backend.Game
	specs     []chartstore.SeriesSpec

	chart   *chartstore.Chart
	updater *updater.Updater
	rest    *backend.RESTClient
	ws      *backend.WSClient
	mirror  io.Closer
	logger  *zap.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open fetches the game, creates its series, subscribes to the live stream,
// loads history and then starts applying streamed points. Games that are
// already final are not streamed.
func Open(ctx context.Context, deps Deps, gameID string) (*GameView, error) {
	if deps.REST == nil {
		return nil, errors.New("view: REST client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	game, err := deps.REST.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("fetch game %s: %w", gameID, err)
	}

	v := &GameView{
		sessionID: uuid.NewString(),
		game:      *game,
		specs:     SeriesSpecs(*game),
		chart:     chartstore.NewChart(),
		rest:      deps.REST,
		done:      make(chan struct{}),
	}
	v.logger = logger.With(zap.String("session", v.sessionID), zap.String("game", gameID))

	for _, spec := range v.specs {
		if err := v.chart.AddSeries(spec); err != nil {
			return nil, fmt.Errorf("add series %s: %w", spec.Source, err)
		}
	}

	var renderer updater.Renderer = v.chart
	if deps.Mirror != nil {
		if mirror := deps.Mirror(gameID); mirror != nil {
			if c, ok := mirror.(io.Closer); ok {
				v.mirror = c
			}
			renderer = updater.Tee(func(source string, err error) {
				v.logger.Warn("mirror write failed", zap.String("source", source), zap.Error(err))
			}, v.chart, mirror)
		}
	}
	opts := []updater.Option{updater.WithLogger(v.logger)}
	if deps.Throttle > 0 {
		opts = append(opts, updater.WithThrottle(deps.Throttle))
	}
	v.updater = updater.New(renderer, opts...)

	streamCtx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	live := game.Status != "final" && deps.WSBaseURL != ""
	if live {
		v.ws = backend.NewWSClient(deps.WSBaseURL, "/ws/games/"+gameID, deps.WSOptions, v.logger)
		v.ws.SetMessageHandler(stream.MakeMessageHandler(v.logger, stream.Handlers{
			OnData: v.onData,
			OnError: func(e stream.Error) {
				v.logger.Warn("stream error", zap.String("message", e.Message), zap.String("code", e.Code))
			},
		}))
		// Runs inside the read loop, so frames received meanwhile wait
		// until the reloaded history has set the watermarks.
		v.ws.SetReconnectHandler(func() { v.loadHistory(streamCtx) })

		// Subscribe before fetching history; frames buffer on the socket
		// until Listen starts below.
		if err := v.ws.Connect(ctx); err != nil {
			close(v.done)
			v.Close()
			return nil, fmt.Errorf("connect stream: %w", err)
		}
	}

	v.loadHistory(ctx)

	if live {
		go func() {
			defer close(v.done)
			err := v.ws.Listen(streamCtx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, backend.ErrClientClosed) {
				v.logger.Error("stream stopped", zap.Error(err))
			}
		}()
	} else {
		close(v.done)
	}

	v.logger.Info("game view opened",
		zap.String("home", game.HomeTeam),
		zap.String("away", game.AwayTeam),
		zap.Int("series", len(v.specs)),
		zap.Int("points", v.chart.CountAll()),
	)
	return v, nil
}

func (v *GameView) onData(d stream.Data) {
	if d.GameID != "" && d.GameID != v.game.ID {
		v.logger.Debug("dropping data for another game", zap.String("frame_game", d.GameID))
		return
	}
	for source, pts := range d.Batches() {
		v.updater.Enqueue(canonicalSource(source), pts)
	}
}

// loadHistory fetches every series over REST and hands it to the updater.
// A failed series keeps whatever it had.
func (v *GameView) loadHistory(ctx context.Context) {
	sem := make(chan struct{}, historyConcurrency)
	var wg sync.WaitGroup

	for _, spec := range v.specs {
		source := spec.Source
		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() { <-sem; wg.Done() }()

			pts, err := v.rest.GetSeries(ctx, v.game.ID, source)
			if err != nil {
				v.logger.Warn("failed to fetch history", zap.String("source", source), zap.Error(err))
				return
			}
			v.updater.Load(source, pts)
		}()
	}
	wg.Wait()
}

func (v *GameView) SessionID() string              { return v.sessionID }
func (v *GameView) Game() backend.Game             { return v.game }
func (v *GameView) Chart() *chartstore.Chart       { return v.chart }
func (v *GameView) Specs() []chartstore.SeriesSpec { return v.specs }
func (v *GameView) Stats() updater.Stats           { return v.updater.Stats() }

// Close stops the stream, then the updater, drains the mirror and destroys
// the chart. It is safe to call more than once.
func (v *GameView) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		if v.ws != nil {
			_ = v.ws.Close()
		}
		<-v.done
		v.updater.Close()
		if v.mirror != nil {
			if err := v.mirror.Close(); err != nil {
				v.logger.Warn("failed to close mirror", zap.Error(err))
			}
		}
		v.chart.Destroy()
		v.logger.Info("game view closed", zap.Any("stats", v.updater.Stats()))
	})
}
