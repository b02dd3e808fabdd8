package updater

import (
	"encoding/json"
	"math"
)

// TimePoint is one probability/price sample applied to a series.
type TimePoint struct {
	Time  int64   `json:"time"`  // unix seconds
	Value float64 `json:"value"` // probability (0-100) or market price in cents
}

// RawPoint is a point as it arrives on the wire. Either field may be absent.
type RawPoint struct {
	Time  *float64 `json:"time"`
	Value *float64 `json:"value"`
}

// UnmarshalJSON never fails: a field that is not a JSON number, or a point
// that is not an object, is left nil so TimePoint rejects just that point.
func (r *RawPoint) UnmarshalJSON(b []byte) error {
	var fields struct {
		Time  json.RawMessage `json:"time"`
		Value json.RawMessage `json:"value"`
	}
	*r = RawPoint{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}
	r.Time = number(fields.Time)
	r.Value = number(fields.Value)
	return nil
}

func number(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// NewRawPoint builds a RawPoint with both fields set.
func NewRawPoint(t, v float64) RawPoint {
	return RawPoint{Time: &t, Value: &v}
}

// TimePoint validates the raw point. Missing or non-finite fields are rejected;
// a fractional time is truncated toward zero.
func (r RawPoint) TimePoint() (TimePoint, bool) {
	if r.Time == nil || r.Value == nil {
		return TimePoint{}, false
	}
	if !isFinite(*r.Time) || !isFinite(*r.Value) {
		return TimePoint{}, false
	}
	return TimePoint{Time: int64(*r.Time), Value: *r.Value}, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Renderer is the charting backend the updater writes to.
// An error means the target series is gone; the updater drops the points.
type Renderer interface {
	// SetSeriesData replaces the whole series.
	SetSeriesData(source string, pts []TimePoint) error

	// AppendSeriesData appends points that are strictly newer than the series tail.
	AppendSeriesData(source string, pts []TimePoint) error
}

// Stats holds updater counters.
type Stats struct {
	Flushes int64 // flushes that applied at least one point
	Applied int64 // points handed to the renderer
	Invalid int64 // points dropped by validation
	Stale   int64 // points dropped by the watermark
	Pending int   // points currently queued
}
