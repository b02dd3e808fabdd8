package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"probchart/internal/updater"
)

// maxPages guards against a backend that never stops returning a cursor.
const maxPages = 1000

type RESTClient struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration, pageSize int) *RESTClient {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListGamesRaw fetches /api/games and returns the undecoded payload so callers
// can cache it.
func (c *RESTClient) ListGamesRaw(ctx context.Context, status string) (json.RawMessage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	return c.do(ctx, http.MethodGet, "/api/games", q, nil)
}

// ListGames fetches games, optionally filtered by status ("live", "final", ...).
func (c *RESTClient) ListGames(ctx context.Context, status string) ([]Game, error) {
	raw, err := c.ListGamesRaw(ctx, status)
	if err != nil {
		return nil, err
	}
	return DecodeGameList(raw)
}

// DecodeGameList decodes a /api/games payload.
func DecodeGameList(raw json.RawMessage) ([]Game, error) {
	var result GameListResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	return result.Games, nil
}

// GetGame fetches one game with its markets.
func (c *RESTClient) GetGame(ctx context.Context, gameID string) (*Game, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/games/"+url.PathEscape(gameID), nil, nil)
	if err != nil {
		return nil, err
	}
	var game Game
	if err := json.Unmarshal(raw, &game); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &game, nil
}

// GetSeries walks every page of /api/games/{id}/probabilities for source and
// returns the valid points. Invalid rows are skipped.
func (c *RESTClient) GetSeries(ctx context.Context, gameID, source string) ([]updater.TimePoint, error) {
	var out []updater.TimePoint
	cursor := ""

	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("source", source)
		q.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		raw, err := c.do(ctx, http.MethodGet, "/api/games/"+url.PathEscape(gameID)+"/probabilities", q, nil)
		if err != nil {
			return nil, err
		}

		var p SeriesPage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode series page: %w", err)
		}
		for _, rp := range p.Points {
			if tp, ok := rp.TimePoint(); ok {
				out = append(out, tp)
			}
		}

		if p.NextCursor == "" {
			return out, nil
		}
		cursor = p.NextCursor
	}

	return nil, fmt.Errorf("series %s/%s: more than %d pages", gameID, source, maxPages)
}

// StartGridSearch submits a grid search and returns the job handle.
func (c *RESTClient) StartGridSearch(ctx context.Context, req GridSearchRequest) (*GridSearchJob, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/grid-search/start", nil, req)
	if err != nil {
		return nil, err
	}
	var job GridSearchJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode grid search job: %w", err)
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("grid search started without job id")
	}
	return &job, nil
}

// GetGridSearchResults fetches the results of a finished (or running) job.
func (c *RESTClient) GetGridSearchResults(ctx context.Context, jobID string) (*GridSearchResults, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/grid-search/"+url.PathEscape(jobID)+"/results", nil, nil)
	if err != nil {
		return nil, err
	}
	var res GridSearchResults
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode grid search results: %w", err)
	}
	return &res, nil
}

// CancelGridSearch asks the backend to stop a running job.
func (c *RESTClient) CancelGridSearch(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/grid-search/"+url.PathEscape(jobID)+"/cancel", nil, nil)
	return err
}

// RunSimulation runs one backtest synchronously on the backend.
func (c *RESTClient) RunSimulation(ctx context.Context, req SimulationRequest) (*SimulationResult, error) {
	raw, err := c.do(ctx, http.MethodPost, "/api/simulation/run", nil, req)
	if err != nil {
		return nil, err
	}
	var res SimulationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode simulation result: %w", err)
	}
	return &res, nil
}

// do performs the request and unwraps the APIResponse envelope.
func (c *RESTClient) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	// Construct the request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(b))}
	}

	var env APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Path: path, Body: env.Error}
	}

	return env.Data, nil
}

// APIError is a non-success reply from the backend.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error: %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}
