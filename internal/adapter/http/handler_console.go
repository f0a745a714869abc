package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/campusiq/opsconsole/internal/domain"
	"github.com/campusiq/opsconsole/internal/usecase"
	"github.com/campusiq/opsconsole/pkg/apperror"
)

// ConsoleHandler handles HTTP requests for the command pipeline
type ConsoleHandler struct {
	console *usecase.Console
	log     *logrus.Logger
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(console *usecase.Console, log *logrus.Logger) *ConsoleHandler {
	return &ConsoleHandler{console: console, log: log}
}

// RegisterRoutes registers console routes
func (h *ConsoleHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/commands", h.Submit).Methods("POST")
	router.HandleFunc("/plans/{id}", h.GetPlan).Methods("GET")
	router.HandleFunc("/plans/{id}/confirm", h.Confirm).Methods("POST")
	router.HandleFunc("/plans/{id}/approve", h.Approve).Methods("POST")
	router.HandleFunc("/executions/{id}/rollback", h.Rollback).Methods("POST")
	router.HandleFunc("/audit", h.QueryAudit).Methods("GET")
}

// Submit handles a natural-language command submission
func (h *ConsoleHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	var req usecase.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("invalid request body"))
		return
	}

	resp, err := h.console.Submit(r.Context(), actor, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetPlan handles retrieving a single plan
func (h *ConsoleHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	plan, err := h.console.GetPlan(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Confirm handles confirming a MEDIUM-risk plan
func (h *ConsoleHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	resp, err := h.console.Confirm(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Approve handles a senior decision on a HIGH-risk plan
func (h *ConsoleHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	var req usecase.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("invalid request body"))
		return
	}
	req.PlanID = mux.Vars(r)["id"]

	resp, err := h.console.Approve(r.Context(), actor, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Rollback handles reversing an executed plan
func (h *ConsoleHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	execution, err := h.console.Rollback(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, execution)
}

// QueryAudit handles audit trail queries
func (h *ConsoleHandler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, apperror.ErrUnauthorized)
		return
	}

	filter := domain.AuditFilter{
		ActorID: r.URL.Query().Get("actor_id"),
		PlanID:  r.URL.Query().Get("plan_id"),
		Stage:   domain.AuditStage(r.URL.Query().Get("stage")),
		Entity:  r.URL.Query().Get("entity"),
	}
	if risk := r.URL.Query().Get("risk_level"); risk != "" {
		filter.RiskLevel = domain.RiskLevel(risk)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	events, err := h.console.QueryAudit(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *ConsoleHandler) fail(w http.ResponseWriter, err error) {
	appErr := apperror.Map(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	writeError(w, appErr)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, appErr *apperror.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": appErr})
}
