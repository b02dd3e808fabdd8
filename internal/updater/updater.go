package updater

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultThrottle bounds how often the renderer is redrawn under streaming.
const DefaultThrottle = 100 * time.Millisecond

// stopper is the part of *time.Timer the updater needs.
type stopper interface {
	Stop() bool
}

// Updater merges streamed points into a chart without reprocessing history.
// Points are queued per source and applied in bursts at most once per throttle
// window. A per-source watermark rejects anything already rendered.
type Updater struct {
	mu         sync.Mutex
	queues     map[string][]TimePoint
	watermarks map[string]int64
	timer      stopper
	gen        uint64 // identifies the armed timer; callbacks carrying an older gen are ignored
	lastFlush  time.Time
	renderer   Renderer
	closed     bool
	stats      Stats

	// applyMu serializes every renderer mutation.
	applyMu sync.Mutex

	throttle  time.Duration
	logger    *zap.Logger
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

// Option configures an Updater.
type Option func(*Updater)

// WithThrottle sets the flush window. Values <= 0 flush on every enqueue.
func WithThrottle(d time.Duration) Option {
	return func(u *Updater) { u.throttle = d }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// New creates an Updater writing to renderer.
func New(renderer Renderer, opts ...Option) *Updater {
	u := &Updater{
		queues:     make(map[string][]TimePoint),
		watermarks: make(map[string]int64),
		renderer:   renderer,
		throttle:   DefaultThrottle,
		logger:     zap.NewNop(),
		now:        time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Enqueue validates raw points and queues them for source.
// Invalid points are dropped silently.
func (u *Updater) Enqueue(source string, pts []RawPoint) {
	valid := make([]TimePoint, 0, len(pts))
	var invalid int64
	for _, p := range pts {
		tp, ok := p.TimePoint()
		if !ok {
			invalid++
			continue
		}
		valid = append(valid, tp)
	}
	u.enqueue(source, valid, invalid)
}

// EnqueuePoints queues already-typed points for source. Points with a
// non-finite value are dropped.
func (u *Updater) EnqueuePoints(source string, pts []TimePoint) {
	valid := make([]TimePoint, 0, len(pts))
	var invalid int64
	for _, p := range pts {
		if !isFinite(p.Value) {
			invalid++
			continue
		}
		valid = append(valid, p)
	}
	u.enqueue(source, valid, invalid)
}

func (u *Updater) enqueue(source string, pts []TimePoint, invalid int64) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.stats.Invalid += invalid
	if len(pts) == 0 {
		u.mu.Unlock()
		return
	}
	u.queues[source] = append(u.queues[source], pts...)

	if u.timer != nil {
		u.mu.Unlock()
		return
	}

	elapsed := u.now().Sub(u.lastFlush)
	if elapsed >= u.throttle {
		u.mu.Unlock()
		u.Flush()
		return
	}

	u.gen++
	gen := u.gen
	u.timer = u.afterFunc(u.throttle-elapsed, func() { u.onTimer(gen) })
	u.mu.Unlock()
}

func (u *Updater) onTimer(gen uint64) {
	u.mu.Lock()
	if gen != u.gen || u.timer == nil || u.closed {
		u.mu.Unlock()
		return
	}
	u.timer = nil
	u.mu.Unlock()

	u.Flush()
}

// Flush drains every pending queue into the renderer.
func (u *Updater) Flush() {
	u.applyMu.Lock()
	defer u.applyMu.Unlock()

	u.mu.Lock()
	u.stopTimerLocked()
	u.lastFlush = u.now()
	renderer := u.renderer
	if u.closed || len(u.queues) == 0 {
		u.mu.Unlock()
		return
	}
	pending := u.queues
	u.queues = make(map[string][]TimePoint)

	batches := make(map[string][]TimePoint, len(pending))
	for source, pts := range pending {
		wm, seen := u.watermarks[source]
		merged := dedupSorted(pts)
		fresh := merged[:0]
		for _, p := range merged {
			if seen && p.Time <= wm {
				u.stats.Stale++
				continue
			}
			fresh = append(fresh, p)
		}
		if len(fresh) > 0 {
			batches[source] = fresh
		}
	}
	u.mu.Unlock()

	if renderer == nil || len(batches) == 0 {
		return
	}

	sources := make([]string, 0, len(batches))
	for source := range batches {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var applied int64
	for _, source := range sources {
		pts := batches[source]
		if err := renderer.AppendSeriesData(source, pts); err != nil {
			u.logger.Debug("dropping points for unavailable series",
				zap.String("source", source), zap.Int("points", len(pts)), zap.Error(err))
			continue
		}
		applied += int64(len(pts))

		u.mu.Lock()
		u.watermarks[source] = pts[len(pts)-1].Time
		u.mu.Unlock()
	}

	u.mu.Lock()
	u.stats.Applied += applied
	if applied > 0 {
		u.stats.Flushes++
	}
	u.mu.Unlock()
}

// Load replaces a source's series with an authoritative history (e.g. a REST
// reload) and moves its watermark to the newest loaded point. Queued points
// newer than the history survive and are appended by the next flush.
func (u *Updater) Load(source string, pts []TimePoint) {
	u.applyMu.Lock()
	defer u.applyMu.Unlock()

	valid := make([]TimePoint, 0, len(pts))
	for _, p := range pts {
		if isFinite(p.Value) {
			valid = append(valid, p)
		}
	}
	merged := dedupSorted(valid)

	u.mu.Lock()
	renderer := u.renderer
	u.mu.Unlock()
	if renderer == nil {
		return
	}

	if err := renderer.SetSeriesData(source, merged); err != nil {
		u.logger.Debug("history load skipped for unavailable series",
			zap.String("source", source), zap.Error(err))
		return
	}

	u.mu.Lock()
	if len(merged) > 0 {
		u.watermarks[source] = merged[len(merged)-1].Time
	} else {
		delete(u.watermarks, source)
	}
	u.mu.Unlock()
}

// Reset clears queues and watermarks and cancels a pending flush.
func (u *Updater) Reset() {
	u.applyMu.Lock()
	defer u.applyMu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.resetLocked()
}

// Close resets the updater and detaches the renderer. Later calls are no-ops.
func (u *Updater) Close() {
	u.applyMu.Lock()
	defer u.applyMu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.resetLocked()
	u.closed = true
	u.renderer = nil
}

func (u *Updater) resetLocked() {
	u.stopTimerLocked()
	u.queues = make(map[string][]TimePoint)
	u.watermarks = make(map[string]int64)
	u.lastFlush = time.Time{}
}

func (u *Updater) stopTimerLocked() {
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.gen++
}

// Watermark returns the newest applied time for source.
func (u *Updater) Watermark(source string) (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	wm, ok := u.watermarks[source]
	return wm, ok
}

// Stats returns a snapshot of the counters.
func (u *Updater) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := u.stats
	for _, q := range u.queues {
		s.Pending += len(q)
	}
	return s
}

// dedupSorted collapses repeated timestamps (last write wins) and returns the
// points in ascending time order.
func dedupSorted(pts []TimePoint) []TimePoint {
	if len(pts) == 0 {
		return nil
	}
	index := make(map[int64]int, len(pts))
	out := make([]TimePoint, 0, len(pts))
	for _, p := range pts {
		if i, ok := index[p.Time]; ok {
			out[i] = p
			continue
		}
		index[p.Time] = len(out)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
