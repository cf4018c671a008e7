package nutrientapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/model"
)

const defaultBaseURL = "http://localhost:8000"

const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Item is one entry of an analysis request, in request position order.
type Item struct {
	Name           string   `json:"name"`
	Quantity       float64  `json:"quantity"`
	PortionMult    *float64 `json:"portion_mult,omitempty"`
	ManualCalories *float64 `json:"manual_calories,omitempty"`
}

type Request struct {
	UserID string `json:"user_id,omitempty"`
	Date   string `json:"date,omitempty"`
	Items  []Item `json:"items"`
}

// Result is the service's answer for one submitted item. Name may differ
// from the submitted text and results may come back in any order.
type Result struct {
	ID       string
	Name     string
	Calories *float64
	Macros   *model.Macros
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string        `json:"id"`
		Item     string        `json:"item"`
		Name     string        `json:"name"`
		Calories *float64      `json:"calories"`
		Macros   *model.Macros `json:"macros"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Name = raw.Item
	if strings.TrimSpace(r.Name) == "" {
		r.Name = raw.Name
	}
	r.Calories = raw.Calories
	r.Macros = raw.Macros
	return nil
}

// EffectiveCalories prefers the top-level calories and falls back to the
// energy figure embedded in macros.
func (r Result) EffectiveCalories() (float64, bool) {
	if r.Calories != nil {
		return *r.Calories, true
	}
	if r.Macros != nil {
		if v, ok := r.Macros.Other[model.NutrientCaloriesKcal]; ok {
			return v, true
		}
	}
	return 0, false
}

type AnalyzeResponse struct {
	Results []Result           `json:"results"`
	Totals  map[string]float64 `json:"totals,omitempty"`
}

// JobHandle identifies an asynchronous summary job; the service keys jobs by
// user and calendar day.
type JobHandle struct {
	UserID string
	Date   string
}

type StatusResponse struct {
	Status  string   `json:"status"`
	Summary *Summary `json:"summary,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type Summary struct {
	Parsed  ParsedSummary      `json:"parsed"`
	Totals  map[string]float64 `json:"totals,omitempty"`
	Results []Result           `json:"results,omitempty"`
}

type ParsedSummary struct {
	Date         string             `json:"date"`
	Totals       map[string]float64 `json:"totals"`
	ProfileUsed  map[string]any     `json:"profile_used"`
	GapsVsTarget map[string]float64 `json:"gaps_vs_target,omitempty"`
	TopMeals     []TopMeal          `json:"top_meals_by_cal,omitempty"`
	CoachSummary string             `json:"coach_summary,omitempty"`
	GeneratedAt  string             `json:"generated_at,omitempty"`
}

type TopMeal struct {
	Item     string  `json:"item"`
	Calories float64 `json:"calories"`
}

type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
}

// Analyze is the synchronous variant: results come back inline.
func (c *Client) Analyze(ctx context.Context, items []Item) (AnalyzeResponse, error) {
	var out AnalyzeResponse
	body, err := c.post(ctx, "/api/run_nutrients", Request{Items: items})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode analysis response: %w", err)
	}
	return out, nil
}

// StartSummary is the asynchronous variant; completion is observed through Status.
func (c *Client) StartSummary(ctx context.Context, date string, items []Item) (JobHandle, error) {
	userID := strings.TrimSpace(c.UserID)
	if userID == "" {
		return JobHandle{}, fmt.Errorf("analysis user id is required")
	}
	if _, err := c.post(ctx, "/api/summarizeDaily", Request{UserID: userID, Date: date, Items: items}); err != nil {
		return JobHandle{}, err
	}
	return JobHandle{UserID: userID, Date: date}, nil
}

func (c *Client) Status(ctx context.Context, job JobHandle) (StatusResponse, error) {
	q := url.Values{}
	q.Set("user_id", job.UserID)
	q.Set("date", job.Date)
	endpoint := c.baseURL() + "/api/summarizeDaily/status?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("create status request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return StatusResponse{}, err
	}
	var out StatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload Request) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute analysis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("analysis request %s failed with status %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) baseURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return defaultBaseURL
	}
	return base
}
