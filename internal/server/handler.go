// Package server exposes a rule store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rulekit/rulekit/internal/metrics"
	"github.com/rulekit/rulekit/rulekit"
	"github.com/rulekit/rulekit/rulekit/rule"
)

// RuleStore is the part of *rulekit.Store the API uses.
type RuleStore interface {
	CreateRule(ctx context.Context, ruleString, name string) (rulekit.Rule, error)
	CombineRules(ctx context.Context, ruleStrings []string, name string) (rulekit.Rule, error)
	CombineStored(ctx context.Context, ids []string, name string) (rulekit.Rule, error)
	GetRule(ctx context.Context, id string) (rulekit.Rule, error)
	ListRules(ctx context.Context, opts rulekit.ListOptions) (rulekit.RulePage, error)
	DeleteRule(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

type APIHandler struct {
	store          RuleStore
	metrics        *metrics.Collector
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(store RuleStore, collector *metrics.Collector, logger *slog.Logger, requestTimeout time.Duration) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector("")
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &APIHandler{
		store:          store,
		metrics:        collector,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

type CreateRuleRequest struct {
	RuleString string `json:"rule_string"`
	Name       string `json:"name,omitempty"`
}

// CombineRulesRequest carries either rule strings or stored rule ids.
type CombineRulesRequest struct {
	Rules []string `json:"rules,omitempty"`
	IDs   []string `json:"ids,omitempty"`
	Name  string   `json:"name,omitempty"`
}

// EvaluateRuleRequest names the rule either inline (AST) or by ID.
type EvaluateRuleRequest struct {
	AST  json.RawMessage `json:"ast,omitempty"`
	ID   string          `json:"id,omitempty"`
	Data map[string]any  `json:"data"`
}

type EvaluateRuleResponse struct {
	Result bool   `json:"result"`
	ID     string `json:"id,omitempty"`
}

type ListRulesResponse struct {
	Rules      []rulekit.Rule `json:"rules"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) CreateRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CreateRuleRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.RuleString == "" {
		h.sendError(w, "rule_string is required", http.StatusBadRequest, "VALIDATION_ERROR", "")
		return
	}

	created, err := h.store.CreateRule(ctx, req.RuleString, req.Name)
	if err != nil {
		h.metrics.Error("create", errorKind(err))
		h.sendStoreError(w, "Failed to create rule", err)
		return
	}
	h.metrics.RuleCreated()

	h.sendJSON(w, created, http.StatusCreated)
	h.logger.Info("Rule created", slog.String("id", created.ID), slog.String("name", created.Name))
}

func (h *APIHandler) CombineRulesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req CombineRulesRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var (
		combined rulekit.Rule
		err      error
	)
	switch {
	case len(req.Rules) > 0 && len(req.IDs) > 0:
		h.sendError(w, "Specify either rules or ids, not both", http.StatusBadRequest, "VALIDATION_ERROR", "")
		return
	case len(req.IDs) > 0:
		combined, err = h.store.CombineStored(ctx, req.IDs, req.Name)
	default:
		// an empty rules list is reported by the store as a combine error
		combined, err = h.store.CombineRules(ctx, req.Rules, req.Name)
	}
	if err != nil {
		h.metrics.Error("combine", errorKind(err))
		h.sendStoreError(w, "Failed to combine rules", err)
		return
	}
	h.metrics.RuleCombined()

	h.sendJSON(w, combined, http.StatusCreated)
	h.logger.Info("Rules combined",
		slog.String("id", combined.ID),
		slog.Int("inputs", len(req.Rules)+len(req.IDs)))
}

func (h *APIHandler) EvaluateRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var req EvaluateRuleRequest
	if err := decodeBody(r, &req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Data == nil {
		h.sendError(w, "data is required", http.StatusBadRequest, "VALIDATION_ERROR", "")
		return
	}

	var tree rule.Node
	switch {
	case len(req.AST) > 0 && req.ID != "":
		h.sendError(w, "Specify either ast or id, not both", http.StatusBadRequest, "VALIDATION_ERROR", "")
		return
	case req.ID != "":
		stored, err := h.store.GetRule(ctx, req.ID)
		if err != nil {
			h.metrics.Error("evaluate", errorKind(err))
			h.sendStoreError(w, "Failed to load rule", err)
			return
		}
		tree = stored.AST
	case len(req.AST) > 0:
		n, err := rule.Decode(req.AST)
		if err != nil {
			h.metrics.Error("evaluate", "invalid")
			h.sendError(w, "Invalid rule tree", http.StatusBadRequest, "INVALID_AST", err.Error())
			return
		}
		tree = n
	default:
		h.sendError(w, "ast or id is required", http.StatusBadRequest, "VALIDATION_ERROR", "")
		return
	}

	start := time.Now()
	result, err := rule.Evaluate(tree, rule.Record(req.Data))
	h.metrics.Evaluation(result, err, time.Since(start))
	if err != nil {
		h.metrics.Error("evaluate", errorKind(err))
		h.sendStoreError(w, "Failed to evaluate rule", err)
		return
	}

	h.sendJSON(w, EvaluateRuleResponse{Result: result, ID: req.ID}, http.StatusOK)
}

func (h *APIHandler) GetRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	got, err := h.store.GetRule(ctx, r.PathValue("id"))
	if err != nil {
		h.sendStoreError(w, "Failed to get rule", err)
		return
	}
	h.sendJSON(w, got, http.StatusOK)
}

func (h *APIHandler) ListRulesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	q := r.URL.Query()
	opts := rulekit.ListOptions{Name: q.Get("name"), After: q.Get("after")}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.sendError(w, "limit must be an integer", http.StatusBadRequest, "VALIDATION_ERROR", "")
			return
		}
		opts.Limit = limit
	}

	page, err := h.store.ListRules(ctx, opts)
	if err != nil {
		h.sendStoreError(w, "Failed to list rules", err)
		return
	}
	rules := page.Rules
	if rules == nil {
		rules = []rulekit.Rule{}
	}
	h.sendJSON(w, ListRulesResponse{Rules: rules, NextCursor: page.NextCursor, HasMore: page.HasMore}, http.StatusOK)
}

func (h *APIHandler) DeleteRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	deleted, err := h.store.DeleteRule(ctx, id)
	if err != nil {
		h.sendStoreError(w, "Failed to delete rule", err)
		return
	}
	if !deleted {
		h.sendError(w, "Rule not found", http.StatusNotFound, "NOT_FOUND", id)
		return
	}
	h.metrics.RuleDeleted()
	w.WriteHeader(http.StatusNoContent)
	h.logger.Info("Rule deleted", slog.String("id", id))
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", slog.String("error", err.Error()))
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	h.sendJSON(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	}, code)
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /create_rule", h.CreateRuleHandler)
	mux.HandleFunc("POST /combine_rules", h.CombineRulesHandler)
	mux.HandleFunc("POST /evaluate_rule", h.EvaluateRuleHandler)
	mux.HandleFunc("GET /rules", h.ListRulesHandler)
	mux.HandleFunc("GET /rules/{id}", h.GetRuleHandler)
	mux.HandleFunc("DELETE /rules/{id}", h.DeleteRuleHandler)
	mux.HandleFunc("GET /healthz", h.HealthCheckHandler)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch rulekit.KindOf(err) {
	case rulekit.ErrSyntax:
		return http.StatusBadRequest, "SYNTAX_ERROR"
	case rulekit.ErrInvalid:
		return http.StatusBadRequest, "INVALID_RULE"
	case rulekit.ErrCombine:
		return http.StatusBadRequest, "COMBINE_ERROR"
	case rulekit.ErrCursor:
		return http.StatusBadRequest, "INVALID_CURSOR"
	case rulekit.ErrEval:
		return http.StatusUnprocessableEntity, "EVALUATION_ERROR"
	case rulekit.ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case "":
	default:
		return http.StatusInternalServerError, "SERVER_ERROR"
	}

	var malformed *rule.MalformedError
	switch {
	case errors.Is(err, rule.ErrEval):
		return http.StatusUnprocessableEntity, "EVALUATION_ERROR"
	case errors.Is(err, rule.ErrSyntax):
		return http.StatusBadRequest, "SYNTAX_ERROR"
	case errors.As(err, &malformed):
		return http.StatusBadRequest, "INVALID_AST"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "SERVER_ERROR"
	}
}

func errorKind(err error) string {
	if k := rulekit.KindOf(err); k != "" {
		return string(k)
	}
	switch {
	case errors.Is(err, rule.ErrEval):
		return string(rulekit.ErrEval)
	case errors.Is(err, rule.ErrSyntax):
		return string(rulekit.ErrSyntax)
	default:
		return "other"
	}
}

func (h *APIHandler) sendStoreError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	details := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, slog.String("error", err.Error()))
		details = ""
	}
	h.sendError(w, message, status, code, details)
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code, details string) {
	resp := ErrorResponse{Error: message, Code: code, Details: details}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}
