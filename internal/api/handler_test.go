package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/printworks/sticker-layout/internal/solver"
	"github.com/printworks/sticker-layout/internal/storage"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubSolve returns a canned optimal result for the two-sticker demo
// problem without touching the engine.
func stubSolve(_ context.Context, p solver.Problem, _ solver.Options) (solver.Result, error) {
	report := make(map[string]solver.DemandCheck, len(p.Stickers))
	dist := make(map[string]int64, len(p.Stickers))
	for _, s := range p.Stickers {
		report[s.Name] = solver.DemandCheck{Printed: s.Demand, Required: s.Demand, Met: true}
		dist[s.Name] = 1
	}
	return solver.Result{
		Status: solver.StatusOptimal,
		Allocation: &solver.Allocation{
			Layouts:      []solver.LayoutPlan{{Index: 0, PrintCount: 5, Distribution: dist}},
			TotalPages:   5,
			DemandReport: report,
		},
		WallTime: 12 * time.Millisecond,
	}, nil
}

func testDefaults() Defaults {
	return Defaults{
		LayoutCapacity: 48,
		MaxLayouts:     5,
		Options: solver.Options{
			TimeBudget:       time.Minute,
			SymmetryBreaking: true,
		},
	}
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	clock := newControllableClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	allOpts := append([]HandlerOption{WithClock(clock.Now), WithSolveFunc(stubSolve)}, opts...)
	handler := NewHandler(store, testDefaults(), allOpts...)
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestPutAndGetStickers(t *testing.T) {
	router, clock := setupTestRouter(t)

	clock.Advance(time.Hour)

	payload := map[string]any{
		"stickers": []map[string]any{
			{"name": "front", "demand": 100},
			{"name": "back", "demand": 50},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/stickers", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Stickers []struct {
			Name   string `json:"name"`
			Demand int64  `json:"demand"`
		} `json:"stickers"`
		UpdatedAt time.Time `json:"updatedAt"`
		Message   string    `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message == "" {
		t.Fatalf("expected success message, got empty string")
	}
	if len(body.Stickers) != 2 || body.Stickers[0].Name != "front" || body.Stickers[1].Demand != 50 {
		t.Fatalf("unexpected stickers: %+v", body.Stickers)
	}
	if !body.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), body.UpdatedAt)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/stickers", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected status 200 from GET, got %d", getRec.Code)
	}
}

func TestPutStickersValidatesInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{name: "Empty", payload: map[string]any{"stickers": []map[string]any{}}},
		{name: "NegativeDemand", payload: map[string]any{"stickers": []map[string]any{{"name": "a", "demand": -1}}}},
		{name: "Duplicate", payload: map[string]any{"stickers": []map[string]any{{"name": "a", "demand": 1}, {"name": "a", "demand": 2}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := json.Marshal(tc.payload)
			req := httptest.NewRequest(http.MethodPut, "/api/stickers", bytes.NewReader(data))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestSolveEndpointWithInlineStickers(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := map[string]any{
		"stickers": []map[string]any{
			{"name": "front", "demand": 10},
			{"name": "back", "demand": 5},
		},
	}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status       string `json:"status"`
		TotalPages   int64  `json:"totalPages"`
		Layouts      []any  `json:"layouts"`
		DemandReport map[string]struct {
			Printed  int64 `json:"printed"`
			Required int64 `json:"required"`
			Met      bool  `json:"met"`
		} `json:"demandReport"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "OPTIMAL" {
		t.Fatalf("expected OPTIMAL status, got %s", body.Status)
	}
	if body.TotalPages != 5 || len(body.Layouts) != 1 {
		t.Fatalf("unexpected allocation: pages=%d layouts=%d", body.TotalPages, len(body.Layouts))
	}
	if check := body.DemandReport["front"]; !check.Met || check.Printed != 10 {
		t.Fatalf("unexpected demand check: %+v", check)
	}
}

func TestSolveEndpointFallsBackToStore(t *testing.T) {
	store := storage.NewMemoryStorage()
	if err := store.SetStickers([]solver.Sticker{{Name: "front", Demand: 10}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	var solved solver.Problem
	capture := func(ctx context.Context, p solver.Problem, opts solver.Options) (solver.Result, error) {
		solved = p
		return stubSolve(ctx, p, opts)
	}

	handler := NewHandler(store, testDefaults(), WithSolveFunc(capture))
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	req := httptest.NewRequest(http.MethodPost, "/api/solve", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(solved.Stickers) != 1 || solved.Stickers[0].Name != "front" {
		t.Fatalf("expected stored stickers to be solved, got %+v", solved.Stickers)
	}
	if solved.LayoutCapacity != 48 || solved.MaxLayouts != 5 {
		t.Fatalf("expected configured defaults, got capacity=%d layouts=%d", solved.LayoutCapacity, solved.MaxLayouts)
	}
}

func TestSolveEndpointRequestOverrides(t *testing.T) {
	var solvedProblem solver.Problem
	var solvedOpts solver.Options
	capture := func(ctx context.Context, p solver.Problem, opts solver.Options) (solver.Result, error) {
		solvedProblem = p
		solvedOpts = opts
		return stubSolve(ctx, p, opts)
	}

	router, _ := setupTestRouter(t, WithSolveFunc(capture))

	payload := map[string]any{
		"stickers":       []map[string]any{{"name": "a", "demand": 3}},
		"layoutCapacity": 6,
		"maxLayouts":     2,
		"timeBudgetMs":   1500,
	}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if solvedProblem.LayoutCapacity != 6 || solvedProblem.MaxLayouts != 2 {
		t.Fatalf("request overrides not applied: %+v", solvedProblem)
	}
	if solvedOpts.TimeBudget != 1500*time.Millisecond {
		t.Fatalf("expected request time budget, got %s", solvedOpts.TimeBudget)
	}
}

func TestSolveEndpointNoStickersAnywhere(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSolveEndpointInfeasibleIsNotAnError(t *testing.T) {
	infeasible := func(context.Context, solver.Problem, solver.Options) (solver.Result, error) {
		return solver.Result{Status: solver.StatusInfeasible}, nil
	}
	router, _ := setupTestRouter(t, WithSolveFunc(infeasible))

	payload := map[string]any{"stickers": []map[string]any{{"name": "a", "demand": 1}}}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for infeasible outcome, got %d", rec.Code)
	}

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "INFEASIBLE" || body.Message == "" {
		t.Fatalf("unexpected infeasible response: %+v", body)
	}
}

func TestSolveEndpointInvalidProblem(t *testing.T) {
	real := func(ctx context.Context, p solver.Problem, opts solver.Options) (solver.Result, error) {
		// Let validation run for real; negative capacity never reaches the engine.
		return solver.Result{}, p.Validate()
	}
	router, _ := setupTestRouter(t, WithSolveFunc(real))

	payload := map[string]any{
		"stickers":       []map[string]any{{"name": "a", "demand": 1}},
		"layoutCapacity": -1,
	}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSolveEndpointInconsistencyIsServerError(t *testing.T) {
	broken := func(context.Context, solver.Problem, solver.Options) (solver.Result, error) {
		return solver.Result{}, solver.ErrInconsistentSolution
	}
	router, _ := setupTestRouter(t, WithSolveFunc(broken))

	payload := map[string]any{"stickers": []map[string]any{{"name": "a", "demand": 1}}}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestSolveEndpointTextFormat(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := map[string]any{"stickers": []map[string]any{{"name": "front", "demand": 10}}}
	data, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/solve?format=text", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "Solver status: OPTIMAL") {
		t.Fatalf("unexpected text report:\n%s", rec.Body.String())
	}
}
