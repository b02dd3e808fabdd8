package stream

import (
	"errors"

	"probchart/internal/updater"
)

// Frame types sent by the backend on /ws/... channels.
const (
	TypeProgress = "progress"
	TypeError    = "error"
	TypePong     = "pong"
	TypeData     = "data"
)

// ErrUnknownType is returned by Decode for a frame type outside the closed set.
var ErrUnknownType = errors.New("stream: unknown message type")

// Message is one decoded frame: Progress, Error, Pong or Data.
type Message interface {
	messageType() string
}

// Progress reports a long-running backend job (grid search, simulation).
type Progress struct {
	JobID     string  `json:"job_id"`
	Completed int     `json:"completed"` // finished combinations
	Total     int     `json:"total"`     // total combinations
	Percent   float64 `json:"percent"`
	Message   string  `json:"message"`
	Done      bool    `json:"done"`
}

// Error is a server-side failure report.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// Pong answers a client ping.
type Pong struct {
	Ts int64 `json:"ts"` // server timestamp (ms)
}

// Data carries new chart points. Either Source+Points or Series (keyed by
// source id) is set; the backend uses both shapes.
type Data struct {
	GameID string                        `json:"game_id,omitempty"`
	Source string                        `json:"source,omitempty"`
	Points []updater.RawPoint            `json:"points,omitempty"`
	Series map[string][]updater.RawPoint `json:"series,omitempty"`
}

func (Progress) messageType() string { return TypeProgress }
func (Error) messageType() string    { return TypeError }
func (Pong) messageType() string     { return TypePong }
func (Data) messageType() string     { return TypeData }

// Finished reports whether the job is complete.
func (p Progress) Finished() bool {
	return p.Done || (p.Total > 0 && p.Completed >= p.Total)
}

// Batches merges both Data shapes into points per source.
func (d Data) Batches() map[string][]updater.RawPoint {
	out := make(map[string][]updater.RawPoint, len(d.Series)+1)
	for source, pts := range d.Series {
		if source == "" || len(pts) == 0 {
			continue
		}
		out[source] = append(out[source], pts...)
	}
	if d.Source != "" && len(d.Points) > 0 {
		out[d.Source] = append(out[d.Source], d.Points...)
	}
	return out
}
