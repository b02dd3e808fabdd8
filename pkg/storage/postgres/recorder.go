package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"probchart/internal/updater"

	"go.uber.org/zap"
)

const defaultRecorderQueue = 256

var (
	// ErrRecorderBusy is returned when the write queue is full; the batch is not recorded.
	ErrRecorderBusy = errors.New("postgres: recorder queue full")

	// ErrRecorderClosed is returned for writes after Close.
	ErrRecorderClosed = errors.New("postgres: recorder closed")
)

type recordBatch struct {
	source string
	pts    []updater.TimePoint
}

// Recorder mirrors one game's chart writes into Postgres. Writes are queued
// and inserted by a single worker, so a slow database never holds up a
// chart flush. Set and append are both idempotent inserts, so a history
// reload only fills gaps.
type Recorder struct {
	gameID  string
	timeout time.Duration
	insert  func(context.Context, []PointRecord) (int64, error)
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan recordBatch
	done   chan struct{}
}

var _ updater.Renderer = (*Recorder)(nil)

func NewRecorder(client *PostgresClient, gameID string, logger *zap.Logger) *Recorder {
	return newRecorder(client.InsertPoints, gameID, logger, defaultRecorderQueue)
}

func newRecorder(insert func(context.Context, []PointRecord) (int64, error), gameID string, logger *zap.Logger, size int) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		gameID:  gameID,
		timeout: 5 * time.Second,
		insert:  insert,
		logger:  logger.With(zap.String("recorder", gameID)),
		queue:   make(chan recordBatch, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) SetSeriesData(source string, pts []updater.TimePoint) error {
	return r.enqueue(source, pts)
}

func (r *Recorder) AppendSeriesData(source string, pts []updater.TimePoint) error {
	return r.enqueue(source, pts)
}

func (r *Recorder) enqueue(source string, pts []updater.TimePoint) error {
	if len(pts) == 0 {
		return nil
	}
	b := recordBatch{source: source, pts: append([]updater.TimePoint(nil), pts...)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- b:
		return nil
	default:
		return ErrRecorderBusy
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for b := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		n, err := r.insert(ctx, ToPointRecords(r.gameID, b.source, b.pts))
		cancel()
		if err != nil {
			r.logger.Warn("failed to record points",
				zap.String("source", b.source), zap.Int("points", len(b.pts)), zap.Error(err))
			continue
		}
		r.logger.Debug("recorded points", zap.String("source", b.source), zap.Int64("rows", n))
	}
}

// Close stops accepting writes and waits for queued ones to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return nil
}
