package gridsearch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"probchart/internal/stream"
	"probchart/pkg/backend"

	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

// JobError is a failure reported by the backend for a running job.
type JobError struct {
	JobID   string
	Code    string
	Message string
}

func (e *JobError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("grid search %s failed (%s): %s", e.JobID, e.Code, e.Message)
	}
	return fmt.Sprintf("grid search %s failed: %s", e.JobID, e.Message)
}

// Options configures Run.
type Options struct {
	// WSBaseURL enables following /ws/grid-search/{id}; when empty the
	// results endpoint is polled instead.
	WSBaseURL    string
	WS           backend.WSOptions
	PollInterval time.Duration
	Logger       *zap.Logger
	OnProgress   func(stream.Progress)
}

// Run starts a grid search, waits for it to finish and returns its results.
// If ctx ends first the job is cancelled on the backend.
func Run(ctx context.Context, rest *backend.RESTClient, req backend.GridSearchRequest, opts Options) (*backend.GridSearchResults, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	job, err := rest.StartGridSearch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start grid search: %w", err)
	}
	logger = logger.With(zap.String("job", job.JobID))
	logger.Info("grid search started", zap.Int("combinations", job.Total))

	if opts.WSBaseURL != "" {
		err = follow(ctx, rest, job.JobID, opts, logger)
	} else {
		err = poll(ctx, rest, job.JobID, opts, logger)
	}
	if err != nil {
		if ctx.Err() != nil {
			cancelJob(rest, job.JobID, logger)
		}
		return nil, err
	}

	results, err := rest.GetGridSearchResults(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("fetch grid search results: %w", err)
	}
	logger.Info("grid search finished", zap.Int("results", len(results.Results)))
	return results, nil
}

// follow reads progress frames until the job finishes or reports an error.
// Once the stream is up the job state is read once, since the last frames may
// have gone out before the connection existed.
func follow(ctx context.Context, rest *backend.RESTClient, jobID string, opts Options, logger *zap.Logger) error {
	done := make(chan error, 1)
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { done <- err })
	}

	ws := backend.NewWSClient(opts.WSBaseURL, "/ws/grid-search/"+jobID, opts.WS, logger)
	ws.SetMessageHandler(stream.MakeMessageHandler(logger, stream.Handlers{
		OnProgress: func(p stream.Progress) {
			if p.JobID != "" && p.JobID != jobID {
				return
			}
			logger.Info("grid search progress",
				zap.Int("completed", p.Completed),
				zap.Int("total", p.Total),
				zap.String("message", p.Message),
			)
			if opts.OnProgress != nil {
				opts.OnProgress(p)
			}
			if p.Finished() {
				finish(nil)
			}
		},
		OnError: func(e stream.Error) {
			if e.JobID != "" && e.JobID != jobID {
				return
			}
			finish(&JobError{JobID: jobID, Code: e.Code, Message: e.Message})
		},
	}))

	if err := ws.Connect(ctx); err != nil {
		return fmt.Errorf("connect progress stream: %w", err)
	}
	defer ws.Close()

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := ws.Listen(listenCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, backend.ErrClientClosed) {
			logger.Warn("progress stream stopped", zap.Error(err))
		}
	}()

	if res, err := rest.GetGridSearchResults(ctx, jobID); err != nil {
		logger.Warn("failed to read grid search state", zap.Error(err))
	} else if finished, jobErr := jobState(jobID, res.Status); finished {
		finish(jobErr)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jobState reports whether status is terminal, and the failure if it is one.
func jobState(jobID, status string) (bool, error) {
	switch status {
	case "completed":
		return true, nil
	case "failed", "cancelled":
		return true, &JobError{JobID: jobID, Message: "job " + status}
	}
	return false, nil
}

// poll checks the results endpoint until the job leaves the running state.
func poll(ctx context.Context, rest *backend.RESTClient, jobID string, opts Options, logger *zap.Logger) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := rest.GetGridSearchResults(ctx, jobID)
		if err != nil {
			logger.Warn("failed to poll grid search", zap.Error(err))
		} else if finished, jobErr := jobState(jobID, res.Status); finished {
			return jobErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func cancelJob(rest *backend.RESTClient, jobID string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rest.CancelGridSearch(ctx, jobID); err != nil {
		logger.Warn("failed to cancel grid search", zap.Error(err))
		return
	}
	logger.Info("grid search cancelled")
}
