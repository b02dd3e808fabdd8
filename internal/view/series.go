package view

import (
	"probchart/internal/chartstore"
	"probchart/pkg/backend"
)

const (
	colorESPN     = "#2ca02c"
	colorESPNAway = "#ff7f0e"
	colorHome     = "#1f77b4"
	colorAway     = "#d62728"
)

// SeriesSpecs lists the lines drawn for a game: the ESPN home and away win
// probabilities first, then one Kalshi line per market.
func SeriesSpecs(game backend.Game) []chartstore.SeriesSpec {
	specs := []chartstore.SeriesSpec{
		{
			Source:     chartstore.SourceESPN,
			IsHomeTeam: true,
			Color:      colorESPN,
			Label:      "ESPN " + game.HomeTeam,
		},
		{
			Source: chartstore.SourceESPNAway,
			Color:  colorESPNAway,
			Label:  "ESPN " + game.AwayTeam,
		},
	}

	seen := map[string]bool{chartstore.SourceESPN: true, chartstore.SourceESPNAway: true}
	for _, m := range game.Markets {
		source := m.Ticker
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true

		color := colorAway
		if m.IsHome {
			color = colorHome
		}
		team := m.Team
		if team == "" {
			team = game.AwayTeam
			if m.IsHome {
				team = game.HomeTeam
			}
		}
		specs = append(specs, chartstore.SeriesSpec{
			Source:     source,
			Ticker:     m.Ticker,
			IsHomeTeam: m.IsHome,
			Color:      color,
			Label:      "Kalshi " + team,
		})
	}
	return specs
}

// canonicalSource maps stream keys onto chart source ids.
func canonicalSource(source string) string {
	switch source {
	case chartstore.SourceHome:
		return chartstore.SourceESPN
	case chartstore.SourceAway:
		return chartstore.SourceESPNAway
	}
	return source
}
