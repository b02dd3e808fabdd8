package chartstore

import (
	"errors"

	"probchart/internal/updater"
)

var (
	// ErrSeriesNotFound is returned when a series was never added or the chart was destroyed.
	ErrSeriesNotFound = errors.New("chartstore: series not found")

	// ErrOutOfOrder is returned when appended points are not newer than the series tail.
	ErrOutOfOrder = errors.New("chartstore: points out of order")
)

// Primary feed source ids. Stream frames may key the ESPN lines as "home"
// and "away"; Kalshi series use their market ticker as source id.
const (
	SourceESPN     = "espn"
	SourceESPNAway = "espn_away"
	SourceHome     = "home"
	SourceAway     = "away"
)

// SeriesSpec describes one renderable line on a game chart.
type SeriesSpec struct {
	Source     string `json:"source"`           // source id used by the updater
	Ticker     string `json:"ticker,omitempty"` // Kalshi market ticker (empty for ESPN lines)
	IsHomeTeam bool   `json:"is_home_team"`
	Color      string `json:"color"` // hex color, e.g. "#1f77b4"
	Label      string `json:"label"` // legend label
}

// Series is a snapshot of a series and its applied points.
type Series struct {
	SeriesSpec
	Points []updater.TimePoint `json:"points"`
}
