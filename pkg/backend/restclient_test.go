package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func writeEnvelope(w http.ResponseWriter, data any) {
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: raw})
}

func newTestServer(t *testing.T, mux *http.ServeMux) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewRESTClient(srv.URL+"/", 5*time.Second, 2)
}

// go test -v --run TestListGames
func TestListGames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "live" {
			t.Errorf("status query = %q", got)
		}
		writeEnvelope(w, GameListResponse{
			Games: []Game{{ID: "401584893", HomeTeam: "BOS", AwayTeam: "LAL", Status: "live"}},
			Total: 1,
		})
	})
	client := newTestServer(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	games, err := client.ListGames(ctx, "live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 1 || games[0].HomeTeam != "BOS" {
		t.Errorf("unexpected games: %+v", games)
	}
}

// go test -v --run TestGetSeriesPaginates
func TestGetSeriesPaginates(t *testing.T) {
	pages := map[string]string{
		"":   `{"source":"espn","points":[{"time":1,"value":50},{"time":2}],"next_cursor":"p2"}`,
		"p2": `{"source":"espn","points":[{"time":3,"value":52}],"next_cursor":""}`,
	}
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/games/401584893/probabilities", func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if q.Get("source") != "espn" || q.Get("limit") != "2" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		body, ok := pages[q.Get("cursor")]
		if !ok {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: json.RawMessage(body)})
	})
	client := newTestServer(t, mux)

	pts, err := client.GetSeries(context.Background(), "401584893", "espn")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	// the point without a value is skipped
	if len(pts) != 2 || pts[0].Time != 1 || pts[1].Value != 52 {
		t.Errorf("unexpected points: %v", pts)
	}
}

// go test -v --run TestGridSearchEndpoints
func TestGridSearchEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/grid-search/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req GridSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Parameters["entry_threshold"]) != 2 {
			t.Errorf("parameters = %v", req.Parameters)
		}
		writeEnvelope(w, GridSearchJob{JobID: "job-1", Total: 2})
	})
	mux.HandleFunc("/api/grid-search/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, GridSearchResults{
			JobID:   "job-1",
			Status:  "completed",
			Results: []GridResult{{Params: map[string]float64{"entry_threshold": 0.05}, ROI: 0.12}},
		})
	})
	mux.HandleFunc("/api/simulation/run", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, SimulationResult{PnL: 12.5, Trades: []SimulatedTrade{{Ticker: "KXNBAGAME-X", PnL: 12.5}}})
	})
	client := newTestServer(t, mux)
	ctx := context.Background()

	job, err := client.StartGridSearch(ctx, GridSearchRequest{
		Sport:      "nba",
		Parameters: map[string][]float64{"entry_threshold": {0.03, 0.05}},
	})
	if err != nil {
		t.Fatalf("StartGridSearch: %v", err)
	}
	if job.JobID != "job-1" {
		t.Fatalf("job id = %q", job.JobID)
	}

	res, err := client.GetGridSearchResults(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetGridSearchResults: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].ROI != 0.12 {
		t.Errorf("unexpected results: %+v", res)
	}

	sim, err := client.RunSimulation(ctx, SimulationRequest{Parameters: map[string]float64{"entry_threshold": 0.05}})
	if err != nil {
		t.Fatalf("RunSimulation: %v", err)
	}
	if sim.PnL != 12.5 || len(sim.Trades) != 1 {
		t.Errorf("unexpected simulation: %+v", sim)
	}
}

// go test -v --run TestAPIErrors
func TestAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/games/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/api/games/broken", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: "game feed unavailable"})
	})
	client := newTestServer(t, mux)

	_, err := client.GetGame(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("err = %v, want 404 APIError", err)
	}

	_, err = client.GetGame(context.Background(), "broken")
	if !errors.As(err, &apiErr) || apiErr.Body != "game feed unavailable" {
		t.Errorf("err = %v, want envelope error", err)
	}
}
