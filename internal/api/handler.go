package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/credit"
	"github.com/opensource-finance/heron/internal/decision"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/service"
)

const (
	// DefaultBatchLimit caps batch size when Deps.BatchLimit is unset.
	DefaultBatchLimit = 500

	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 4 << 20
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc        *service.Service
	engine     *rules.Engine
	credit     *credit.Client
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	version    string
	batchLimit int
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	limit := deps.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &Handler{
		svc:        deps.Service,
		engine:     deps.Rules,
		credit:     deps.Credit,
		repo:       deps.Repo,
		cache:      deps.Cache,
		bus:        deps.Bus,
		version:    deps.Version,
		batchLimit: limit,
	}
}

// AssessRequest is the request body for POST /risk/assess.
type AssessRequest = domain.AssessmentInput

// AssessResponse is the response for a scored application.
type AssessResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	domain.Assessment
	RiskLevelLabel      string              `json:"riskLevelLabel"`
	RecommendationLabel string              `json:"recommendationLabel"`
	KeyFactors          []string            `json:"keyFactors"`
	Advisories          []domain.RuleResult `json:"advisories,omitempty"`
	Reasons             []string            `json:"reasons,omitempty"`
	Metadata            ResponseMetadata    `json:"metadata"`
}

// ResponseMetadata carries processing information.
type ResponseMetadata struct {
	TraceID            string `json:"traceId"`
	ScoringMicros      int64  `json:"scoringMicros"`
	TotalMs            int64  `json:"totalMs"`
	RecentApplications int64  `json:"recentApplications"`
	Version            string `json:"version"`
}

func (h *Handler) newAssessResponse(rec *domain.AssessmentRecord, traceID string) AssessResponse {
	a := *rec.Assessment
	resp := AssessResponse{
		ID:                  rec.ID,
		Status:              rec.Status,
		Assessment:          a,
		RiskLevelLabel:      a.RiskLevel.Label(),
		RecommendationLabel: a.Recommendation.Label(),
		KeyFactors:          a.KeyFactors(),
		Advisories:          rec.Advisories,
		Reasons:             decision.Reasons(rec.Advisories),
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.ScoringMicros = rec.Metadata.ScoringMicros
	resp.Metadata.TotalMs = rec.Metadata.TotalMs
	resp.Metadata.RecentApplications = rec.Metadata.RecentApplications
	resp.Metadata.Version = h.version
	return resp
}

// statusFor maps an assessment error to its HTTP status.
func statusFor(err error) int {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		if verr.OnlyCreditScoreRange() {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// Assess handles POST /risk/assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var body AssessRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := body.ToRequest()
	if err != nil {
		writeJSON(w, statusFor(err), domain.NewErrorBody(err))
		return
	}

	rec, err := h.svc.Assess(ctx, tenantID, req)
	if err != nil {
		if rec == nil {
			writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "assessment failed")
			return
		}
		writeJSON(w, statusFor(err), rec.Error)
		return
	}

	writeJSON(w, http.StatusOK, h.newAssessResponse(rec, traceID))
}

// BatchRequest is the request body for POST /risk/assess/batch.
type BatchRequest struct {
	Applications []AssessRequest `json:"applications"`
}

// BatchResult is the outcome of one application in a batch.
type BatchResult struct {
	Index  int               `json:"index"`
	Status int               `json:"status"`
	Result *AssessResponse   `json:"result,omitempty"`
	Error  *domain.ErrorBody `json:"error,omitempty"`
}

// AssessBatch handles POST /risk/assess/batch requests.
// Items succeed or fail independently and keep the input order.
func (h *Handler) AssessBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var body BatchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Applications) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, "applications must not be empty")
		return
	}
	if len(body.Applications) > h.batchLimit {
		writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest,
			"batch exceeds limit of "+strconv.Itoa(h.batchLimit)+" applications")
		return
	}

	results := make([]BatchResult, len(body.Applications))
	reqs := make([]domain.AssessmentRequest, 0, len(body.Applications))
	positions := make([]int, 0, len(body.Applications))

	for i, app := range body.Applications {
		results[i].Index = i
		req, err := app.ToRequest()
		if err != nil {
			results[i].Status = statusFor(err)
			results[i].Error = domain.NewErrorBody(err)
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	for j, item := range h.svc.AssessBatch(ctx, tenantID, reqs) {
		res := &results[positions[j]]
		switch {
		case item.Err == nil:
			resp := h.newAssessResponse(item.Record, traceID)
			res.Status = http.StatusOK
			res.Result = &resp
		case item.Record != nil:
			res.Status = statusFor(item.Err)
			res.Error = item.Record.Error
		default:
			res.Status = http.StatusServiceUnavailable
			res.Error = &domain.ErrorBody{Code: domain.ErrorCodeUnavailable, Message: item.Err.Error()}
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.Status == http.StatusOK {
			succeeded++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"count":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"totalMs":   time.Since(start).Milliseconds(),
	})
}

// Submit handles POST /risk/submissions requests.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var body AssessRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := body.ToRequest()
	if err != nil {
		writeJSON(w, statusFor(err), domain.NewErrorBody(err))
		return
	}

	id, err := h.svc.Submit(ctx, tenantID, req)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, statusFor(err), domain.NewErrorBody(err))
		case errors.Is(err, service.ErrNoBus):
			writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "async processing not available")
		default:
			slog.Error("failed to queue assessment", "tenant_id", tenantID, "error", err)
			writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "failed to queue assessment")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "queued",
	})
}

// ListAssessments returns the tenant's most recent assessment records.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "repository not available")
		return
	}

	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.repo.ListAssessments(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list assessments", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to list assessments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": records,
		"count":       len(records),
	})
}

// GetAssessment retrieves an assessment record by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "repository not available")
		return
	}

	rec, err := h.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, domain.ErrorCodeNotFound, "assessment not found")
			return
		}
		slog.Error("failed to get assessment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to get assessment")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Tables returns the banding tables and classifier thresholds.
func (h *Handler) Tables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Tables().Describe())
}

// CreditQueryRequest is the request body for POST /credit/query.
type CreditQueryRequest struct {
	CompanyName string `json:"companyName"`
	Provider    string `json:"provider,omitempty"`
}

// QueryCredit resolves a company's credit report.
func (h *Handler) QueryCredit(w http.ResponseWriter, r *http.Request) {
	if h.credit == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "credit service not available")
		return
	}

	var req CreditQueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := h.credit.GetCreditScore(r.Context(), req.CompanyName, req.Provider)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, err.Error())
			return
		}
		slog.Error("credit query failed", "provider", req.Provider, "error", err)
		writeError(w, http.StatusBadGateway, domain.ErrorCodeUnavailable, "credit bureau unavailable")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// CreditStats returns free-quota usage per provider.
func (h *Handler) CreditStats(w http.ResponseWriter, r *http.Request) {
	if h.credit == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "credit service not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": h.credit.Stats(),
	})
}

// CreditProviders lists the selectable credit providers.
func (h *Handler) CreditProviders(w http.ResponseWriter, r *http.Request) {
	if h.credit == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "credit service not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": h.credit.Providers(),
	})
}

// ResetCreditStats clears quota usage of one provider, or of all when none is given.
func (h *Handler) ResetCreditStats(w http.ResponseWriter, r *http.Request) {
	if h.credit == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "credit service not available")
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	if err := h.credit.ResetStats(r.Context(), req.Provider); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, err.Error())
			return
		}
		slog.Error("failed to reset credit stats", "provider", req.Provider, "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to reset stats")
		return
	}

	slog.Info("credit stats reset", "provider", req.Provider)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "stats reset",
		"providers": h.credit.Stats(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(r.Context()) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(r.Context()) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(r.Context()) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// ListRules returns all loaded screening rules.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a loaded rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if rule, ok := h.engine.GetLoadedRule(ruleID); ok {
		writeJSON(w, http.StatusOK, rule)
		return
	}

	writeError(w, http.StatusNotFound, domain.ErrorCodeNotFound, "rule not found")
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule validates a rule and saves it to the database.
// Rules are saved globally so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, "id, name, and expression are required")
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    domain.GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	if err := h.engine.ValidateRule(ruleConfig); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorCodeBadRequest, "invalid rule: "+err.Error())
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "repository not available")
		return
	}
	if err := h.repo.SaveRuleConfig(ctx, domain.GlobalTenantID, ruleConfig); err != nil {
		slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to save rule")
		return
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrorCodeUnavailable, "repository not available")
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx, domain.GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to load rules from database")
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrorCodeInternal, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("rules reloaded from database", "count", h.engine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   h.engine.RulesCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, domain.ErrorBody{Code: code, Message: message})
}
