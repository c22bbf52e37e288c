package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/printworks/sticker-layout/internal/report"
	"github.com/printworks/sticker-layout/internal/solver"
	"github.com/printworks/sticker-layout/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// SolveFunc runs one optimization. It exists as an indirection so tests
// can substitute the CP-SAT engine.
type SolveFunc func(ctx context.Context, p solver.Problem, opts solver.Options) (solver.Result, error)

func defaultSolveFunc(ctx context.Context, p solver.Problem, opts solver.Options) (solver.Result, error) {
	return solver.New(opts).Solve(ctx, p)
}

// Defaults carries the plate geometry and solver options applied when a
// solve request does not override them.
type Defaults struct {
	LayoutCapacity int64
	MaxLayouts     int
	Options        solver.Options
}

// Handler wires the solver and demand storage into HTTP handlers.
type Handler struct {
	storage  storage.Storage
	defaults Defaults
	solve    SolveFunc

	clock func() time.Time

	mu                sync.RWMutex
	stickersUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithSolveFunc overrides the solve implementation, primarily for tests.
func WithSolveFunc(fn SolveFunc) HandlerOption {
	return func(h *Handler) {
		h.solve = fn
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store storage.Storage, defaults Defaults, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage:  store,
		defaults: defaults,
		solve:    defaultSolveFunc,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.stickersUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetStickers(w http.ResponseWriter, r *http.Request) {
	_ = r
	stickers, err := h.storage.GetStickers()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := stickersResponse{
		Stickers:  toStickerPayloads(stickers),
		UpdatedAt: h.currentStickersUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutStickers(w http.ResponseWriter, r *http.Request) {
	var req stickersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if len(req.Stickers) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid stickers", "stickers must contain at least one entry")
		return
	}

	if err := h.storage.SetStickers(fromStickerPayloads(req.Stickers)); err != nil {
		if errors.Is(err, storage.ErrInvalidStickers) {
			writeError(w, http.StatusBadRequest, "Invalid stickers", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markStickersUpdated()

	stickers, err := h.storage.GetStickers()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := stickersResponse{
		Stickers:  toStickerPayloads(stickers),
		UpdatedAt: h.currentStickersUpdatedAt(),
		Message:   "Sticker demands updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	problem, opts, err := h.buildProblem(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid problem", err.Error())
		return
	}

	result, err := h.solve(r.Context(), problem, opts)
	if err != nil {
		switch {
		case solver.IsInvalidProblem(err):
			writeError(w, http.StatusBadRequest, "Invalid problem", err.Error())
		case errors.Is(err, solver.ErrInconsistentSolution), errors.Is(err, solver.ErrModelInvalid):
			writeError(w, http.StatusInternalServerError, "Solver defect", err.Error())
		default:
			writeInternalError(w, err)
		}
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report.Render(result))
		return
	}

	writeJSON(w, http.StatusOK, toSolveResponse(result))
}

// buildProblem resolves the effective problem and options for one solve
// request: request fields win over the stored demand list and the
// configured defaults.
func (h *Handler) buildProblem(req solveRequest) (solver.Problem, solver.Options, error) {
	stickers := fromStickerPayloads(req.Stickers)
	if len(stickers) == 0 {
		stored, err := h.storage.GetStickers()
		if err != nil {
			return solver.Problem{}, solver.Options{}, err
		}
		stickers = stored
	}
	if len(stickers) == 0 {
		return solver.Problem{}, solver.Options{}, errors.New("no stickers in request or store")
	}

	problem := solver.Problem{
		Stickers:       stickers,
		LayoutCapacity: h.defaults.LayoutCapacity,
		MaxLayouts:     h.defaults.MaxLayouts,
	}
	if req.LayoutCapacity != nil {
		problem.LayoutCapacity = *req.LayoutCapacity
	}
	if req.MaxLayouts != nil {
		problem.MaxLayouts = *req.MaxLayouts
	}

	opts := h.defaults.Options
	if req.TimeBudgetMs != nil && *req.TimeBudgetMs > 0 {
		budget := time.Duration(*req.TimeBudgetMs) * time.Millisecond
		if opts.TimeBudget == 0 || budget < opts.TimeBudget {
			opts.TimeBudget = budget
		}
	}

	return problem, opts, nil
}

func (h *Handler) currentStickersUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stickersUpdatedAt
}

func (h *Handler) markStickersUpdated() {
	h.mu.Lock()
	h.stickersUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
