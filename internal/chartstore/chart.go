package chartstore

import (
	"fmt"
	"sort"
	"sync"

	"probchart/internal/updater"
)

// Chart is an in-memory chart holding the applied points of each series.
// It satisfies updater.Renderer.
type Chart struct {
	globalMu  sync.RWMutex
	data      map[string]*seriesStore
	order     []string
	destroyed bool
}

type seriesStore struct {
	mu     sync.Mutex
	spec   SeriesSpec
	points []updater.TimePoint
}

var _ updater.Renderer = (*Chart)(nil)

func NewChart() *Chart {
	return &Chart{
		data: make(map[string]*seriesStore),
	}
}

// AddSeries registers a series handle. Adding an existing source updates its metadata.
func (c *Chart) AddSeries(spec SeriesSpec) error {
	if spec.Source == "" {
		return fmt.Errorf("chartstore: empty source id")
	}

	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	if c.destroyed {
		return ErrSeriesNotFound
	}
	if store, ok := c.data[spec.Source]; ok {
		store.mu.Lock()
		store.spec = spec
		store.mu.Unlock()
		return nil
	}
	c.data[spec.Source] = &seriesStore{spec: spec}
	c.order = append(c.order, spec.Source)
	return nil
}

// RemoveSeries drops a series and its points.
func (c *Chart) RemoveSeries(source string) {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	delete(c.data, source)
	for i, s := range c.order {
		if s == source {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Destroy tears the chart down. Every later mutation returns ErrSeriesNotFound.
func (c *Chart) Destroy() {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	c.destroyed = true
	c.data = make(map[string]*seriesStore)
	c.order = nil
}

func (c *Chart) lookup(source string) (*seriesStore, bool) {
	c.globalMu.RLock()
	defer c.globalMu.RUnlock()
	store, ok := c.data[source]
	return store, ok
}

// SetSeriesData replaces the points of a series.
func (c *Chart) SetSeriesData(source string, pts []updater.TimePoint) error {
	store, ok := c.lookup(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSeriesNotFound, source)
	}

	cp := make([]updater.TimePoint, len(pts))
	copy(cp, pts)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time < cp[j].Time })

	store.mu.Lock()
	store.points = cp
	store.mu.Unlock()
	return nil
}

// AppendSeriesData appends points that must be strictly ascending and newer
// than the current tail.
func (c *Chart) AppendSeriesData(source string, pts []updater.TimePoint) error {
	store, ok := c.lookup(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSeriesNotFound, source)
	}
	if len(pts) == 0 {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	last := int64(0)
	hasLast := len(store.points) > 0
	if hasLast {
		last = store.points[len(store.points)-1].Time
	}
	for _, p := range pts {
		if hasLast && p.Time <= last {
			return fmt.Errorf("%w: %s at %d (tail %d)", ErrOutOfOrder, source, p.Time, last)
		}
		last, hasLast = p.Time, true
	}

	store.points = append(store.points, pts...)
	return nil
}

// Series returns a copy of one series.
func (c *Chart) Series(source string) (Series, bool) {
	store, ok := c.lookup(source)
	if !ok {
		return Series{}, false
	}
	return store.snapshot(), true
}

// All returns copies of every series in the order they were added.
func (c *Chart) All() []Series {
	c.globalMu.RLock()
	defer c.globalMu.RUnlock()

	result := make([]Series, 0, len(c.order))
	for _, source := range c.order {
		result = append(result, c.data[source].snapshot())
	}
	return result
}

// CountAll returns the total number of points stored across all series.
func (c *Chart) CountAll() int {
	c.globalMu.RLock()
	defer c.globalMu.RUnlock()

	total := 0
	for _, store := range c.data {
		store.mu.Lock()
		total += len(store.points)
		store.mu.Unlock()
	}
	return total
}

func (s *seriesStore) snapshot() Series {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]updater.TimePoint, len(s.points))
	copy(cp, s.points)
	return Series{SeriesSpec: s.spec, Points: cp}
}
