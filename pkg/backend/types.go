package backend

import (
	"encoding/json"
	"time"

	"probchart/internal/updater"
)

// APIResponse is the envelope every /api endpoint returns.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"` // Delay decoding; payload varies per endpoint
	Error   string          `json:"error,omitempty"`
}

// Game is one sporting event with its ESPN feed and Kalshi markets.
type Game struct {
	ID        string    `json:"game_id"`
	Sport     string    `json:"sport"` // e.g. "nba", "nfl"
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"` // "scheduled", "live", "final"
	Markets   []Market  `json:"markets"`
}

// Market is a Kalshi contract tied to one team winning the game.
type Market struct {
	Ticker string `json:"ticker"` // e.g. "KXNBAGAME-25JAN01LALBOS-LAL"
	Team   string `json:"team"`
	IsHome bool   `json:"is_home"`
}

type GameListResponse struct {
	Games []Game `json:"games"`
	Total int    `json:"total"`
}

// SeriesPage is one page of /api/games/{id}/probabilities.
type SeriesPage struct {
	Source     string             `json:"source"`
	Points     []updater.RawPoint `json:"points"`
	NextCursor string             `json:"next_cursor"`
}

// GridSearchRequest describes the parameter grid to sweep.
type GridSearchRequest struct {
	Sport      string               `json:"sport,omitempty"`
	GameIDs    []string             `json:"game_ids,omitempty"`
	StartDate  string               `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    string               `json:"end_date,omitempty"`
	Parameters map[string][]float64 `json:"parameters"` // e.g. "entry_threshold": [0.03, 0.05]
}

type GridSearchJob struct {
	JobID string `json:"job_id"`
	Total int    `json:"total"` // number of combinations
}

// GridResult is one evaluated parameter combination as computed by the backend.
type GridResult struct {
	Params  map[string]float64 `json:"params"`
	Trades  int                `json:"trades"`
	WinRate float64            `json:"win_rate"`
	ROI     float64            `json:"roi"`
	PnL     float64            `json:"pnl"`
	Brier   float64            `json:"brier_score"`
	LogLoss float64            `json:"log_loss"`
	Sharpe  float64            `json:"sharpe"`
}

type GridSearchResults struct {
	JobID   string       `json:"job_id"`
	Status  string       `json:"status"`
	Results []GridResult `json:"results"`
	Best    *GridResult  `json:"best,omitempty"`
}

// SimulationRequest runs one trading backtest with fixed parameters.
type SimulationRequest struct {
	GameIDs    []string           `json:"game_ids,omitempty"`
	Sport      string             `json:"sport,omitempty"`
	Parameters map[string]float64 `json:"parameters"`
}

type SimulatedTrade struct {
	GameID     string  `json:"game_id"`
	Ticker     string  `json:"ticker"`
	Side       string  `json:"side"` // "yes" or "no"
	EntryTime  int64   `json:"entry_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitTime   int64   `json:"exit_time"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
}

type SimulationResult struct {
	Trades  []SimulatedTrade `json:"trades"`
	PnL     float64          `json:"pnl"`
	ROI     float64          `json:"roi"`
	WinRate float64          `json:"win_rate"`
	Brier   float64          `json:"brier_score"`
}
