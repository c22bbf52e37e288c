package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/printworks/sticker-layout/internal/solver"
)

type stickerPayload struct {
	Name   string `json:"name"`
	Demand int64  `json:"demand"`
}

type stickersRequest struct {
	Stickers []stickerPayload `json:"stickers"`
}

type stickersResponse struct {
	Stickers  []stickerPayload `json:"stickers"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Message   string           `json:"message,omitempty"`
}

type solveRequest struct {
	Stickers       []stickerPayload `json:"stickers,omitempty"`
	LayoutCapacity *int64           `json:"layoutCapacity,omitempty"`
	MaxLayouts     *int             `json:"maxLayouts,omitempty"`
	TimeBudgetMs   *int64           `json:"timeBudgetMs,omitempty"`
}

type layoutPayload struct {
	Layout       int              `json:"layout"`
	PrintCount   int64            `json:"printCount"`
	Distribution map[string]int64 `json:"distribution"`
}

type demandCheckPayload struct {
	Printed  int64 `json:"printed"`
	Required int64 `json:"required"`
	Met      bool  `json:"met"`
}

type solveResponse struct {
	Status       string                        `json:"status"`
	TotalPages   int64                         `json:"totalPages,omitempty"`
	Layouts      []layoutPayload               `json:"layouts,omitempty"`
	DemandReport map[string]demandCheckPayload `json:"demandReport,omitempty"`
	SolveTimeMs  int64                         `json:"solveTimeMs"`
	Message      string                        `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func toStickerPayloads(stickers []solver.Sticker) []stickerPayload {
	out := make([]stickerPayload, 0, len(stickers))
	for _, s := range stickers {
		out = append(out, stickerPayload{Name: s.Name, Demand: s.Demand})
	}
	return out
}

func fromStickerPayloads(payloads []stickerPayload) []solver.Sticker {
	out := make([]solver.Sticker, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, solver.Sticker{Name: p.Name, Demand: p.Demand})
	}
	return out
}

func toSolveResponse(result solver.Result) solveResponse {
	resp := solveResponse{
		Status:      result.Status.String(),
		SolveTimeMs: result.WallTime.Milliseconds(),
	}
	if result.Allocation == nil {
		switch result.Status {
		case solver.StatusInfeasible:
			resp.Message = "no allocation satisfies the demands with the given layout capacity and budget"
		default:
			resp.Message = "no solution found within the time budget"
		}
		return resp
	}

	alloc := result.Allocation
	resp.TotalPages = alloc.TotalPages
	resp.Layouts = make([]layoutPayload, 0, len(alloc.Layouts))
	for _, plan := range alloc.Layouts {
		resp.Layouts = append(resp.Layouts, layoutPayload{
			Layout:       plan.Index,
			PrintCount:   plan.PrintCount,
			Distribution: plan.Distribution,
		})
	}
	resp.DemandReport = make(map[string]demandCheckPayload, len(alloc.DemandReport))
	for name, check := range alloc.DemandReport {
		resp.DemandReport[name] = demandCheckPayload{
			Printed:  check.Printed,
			Required: check.Required,
			Met:      check.Met,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
