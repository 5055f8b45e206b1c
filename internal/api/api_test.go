package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/credit"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/opensource-finance/heron/internal/service"
	"github.com/opensource-finance/heron/internal/telemetry"
	"github.com/opensource-finance/heron/internal/velocity"
)

type testEnv struct {
	server *Server
	repo   domain.Repository
	bus    *bus.ChannelBus
}

// createTestServer creates a server backed by SQLite, the LRU cache and the channel bus.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(1000)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	ctx := context.Background()
	for _, rule := range rules.SampleRules() {
		if err := repo.SaveRuleConfig(ctx, domain.GlobalTenantID, rule); err != nil {
			t.Fatalf("failed to seed rule: %v", err)
		}
	}

	ruleEngine, _ := rules.NewEngine(4)
	stored, _ := repo.ListRuleConfigs(ctx, domain.GlobalTenantID)
	if err := ruleEngine.LoadRules(stored); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	engine, err := scoring.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	svc, err := service.New(service.Config{
		Engine:   engine,
		Rules:    ruleEngine,
		Velocity: velocity.NewService(repo, time.Hour),
		Repo:     repo,
		Bus:      eventBus,
		Version:  "test-v1",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	creditClient, err := credit.NewClient(domain.CreditConfig{
		DefaultProvider: credit.MockProviderID,
		Providers:       domain.DefaultCreditProviders(),
		CacheTTL:        time.Hour,
		QuotaWindow:     24 * time.Hour,
		FallbackToMock:  true,
	}, lru, nil)
	if err != nil {
		t.Fatalf("failed to create credit client: %v", err)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		t.Fatalf("failed to init metrics: %v", err)
	}
	t.Cleanup(func() { metrics.Shutdown(context.Background()) })

	server := NewServer(domain.ServerConfig{Host: "localhost", Port: 8080, BatchLimit: 5}, Deps{
		Service: svc,
		Rules:   ruleEngine,
		Credit:  creditClient,
		Repo:    repo,
		Cache:   lru,
		Bus:     eventBus,
		Metrics: metrics.Handler,
		Version: "test-v1",
	})

	return &testEnv{server: server, repo: repo, bus: eventBus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TenantIDHeader, "tenant-001")

	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func application() map[string]any {
	return map[string]any{
		"companyName":      "深圳示例科技有限公司",
		"annualRevenue":    12000,
		"loanAmount":       500,
		"loanTermMonths":   12,
		"industry":         "technology",
		"businessAgeYears": 20,
		"creditScore":      820,
		"creditTier":       "优秀",
		"creditSource":     "百行征信 (模拟)",
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) domain.ErrorBody {
	t.Helper()
	var body domain.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v: %s", err, rr.Body.String())
	}
	return body
}

func TestAssessEndpoint(t *testing.T) {
	env := createTestServer(t)

	t.Run("LowRisk", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/risk/assess", application())
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AssessResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ID == "" {
			t.Error("expected record id")
		}
		if resp.TotalScore != 25 || resp.RiskLevel != domain.RiskLow || resp.Recommendation != domain.RecommendApprove {
			t.Errorf("expected 25/low/approve, got %d/%s/%s", resp.TotalScore, resp.RiskLevel, resp.Recommendation)
		}
		if resp.RiskLevelLabel != "低风险" || resp.RecommendationLabel != "建议批准贷款" {
			t.Errorf("unexpected labels %q %q", resp.RiskLevelLabel, resp.RecommendationLabel)
		}
		if len(resp.Factors) != 5 || len(resp.KeyFactors) != 5 {
			t.Errorf("expected 5 factors, got %d/%d", len(resp.Factors), len(resp.KeyFactors))
		}
		if resp.TableVersion != scoring.TablesVersion {
			t.Errorf("expected table version %s, got %s", scoring.TablesVersion, resp.TableVersion)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected trace header")
		}
	})

	t.Run("ExtremeRiskWithAdvisories", func(t *testing.T) {
		app := application()
		app["creditScore"] = 550
		app["annualRevenue"] = 500
		app["loanAmount"] = 400
		app["loanTermMonths"] = 36
		app["businessAgeYears"] = 2
		app["industry"] = "Construction"

		rr := env.do(t, http.MethodPost, "/risk/assess", app)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AssessResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.TotalScore != 100 || resp.RiskLevel != domain.RiskExtreme {
			t.Errorf("expected 100/extreme, got %d/%s", resp.TotalScore, resp.RiskLevel)
		}
		if len(resp.Reasons) != 2 {
			t.Errorf("expected 2 advisory reasons, got %v", resp.Reasons)
		}
	})

	t.Run("MissingTenant", func(t *testing.T) {
		data, _ := json.Marshal(application())
		req := httptest.NewRequest(http.MethodPost, "/risk/assess", bytes.NewReader(data))
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
		if body := decodeError(t, rr); body.Code != domain.ErrorCodeBadRequest {
			t.Errorf("expected bad_request, got %s", body.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/risk/assess", "{invalid")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		app := application()
		delete(app, "creditScore")
		delete(app, "industry")
		app["loanAmount"] = 0

		rr := env.do(t, http.MethodPost, "/risk/assess", app)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}

		body := decodeError(t, rr)
		if body.Code != domain.ErrorCodeValidation {
			t.Errorf("expected validation_error, got %s", body.Code)
		}
		codes := map[string]string{}
		for _, f := range body.Fields {
			codes[f.Field] = f.Code
		}
		if codes["creditScore"] != domain.CodeRequired || codes["industry"] != domain.CodeRequired {
			t.Errorf("expected required codes, got %v", codes)
		}
		if codes["loanAmount"] != domain.CodeNotPositive {
			t.Errorf("expected not_positive for loanAmount, got %v", codes)
		}
	})

	t.Run("CreditScoreOutOfRange", func(t *testing.T) {
		app := application()
		app["creditScore"] = 900

		rr := env.do(t, http.MethodPost, "/risk/assess", app)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
		}
		if body := decodeError(t, rr); body.Code != domain.ErrorCodeCreditScoreRange {
			t.Errorf("expected credit_score_out_of_range, got %s", body.Code)
		}
	})

	t.Run("CreditScoreWithOtherErrors", func(t *testing.T) {
		app := application()
		app["creditScore"] = 900
		app["loanTermMonths"] = 18

		rr := env.do(t, http.MethodPost, "/risk/assess", app)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownIndustry", func(t *testing.T) {
		app := application()
		app["industry"] = "mining"

		rr := env.do(t, http.MethodPost, "/risk/assess", app)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestAssessBatchEndpoint(t *testing.T) {
	env := createTestServer(t)

	bad := application()
	bad["creditScore"] = 200
	missing := application()
	delete(missing, "companyName")

	rr := env.do(t, http.MethodPost, "/risk/assess/batch", map[string]any{
		"applications": []any{application(), bad, missing, application()},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Results   []BatchResult `json:"results"`
		Succeeded int           `json:"succeeded"`
		Failed    int           `json:"failed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp.Results) != 4 || resp.Succeeded != 2 || resp.Failed != 2 {
		t.Fatalf("unexpected batch summary: %+v", resp)
	}
	want := []int{http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadRequest, http.StatusOK}
	for i, res := range resp.Results {
		if res.Index != i || res.Status != want[i] {
			t.Errorf("item %d: expected index %d status %d, got %d/%d", i, i, want[i], res.Index, res.Status)
		}
	}
	if resp.Results[0].Result == nil || resp.Results[0].Result.TotalScore != 25 {
		t.Errorf("expected scored first item, got %+v", resp.Results[0])
	}
	if resp.Results[2].Error == nil || resp.Results[2].Error.Fields[0].Code != domain.CodeRequired {
		t.Errorf("expected required error, got %+v", resp.Results[2].Error)
	}

	t.Run("Empty", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/risk/assess/batch", map[string]any{"applications": []any{}})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		apps := make([]any, 6)
		for i := range apps {
			apps[i] = application()
		}
		rr := env.do(t, http.MethodPost, "/risk/assess/batch", map[string]any{"applications": apps})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestSubmitEndpoint(t *testing.T) {
	env := createTestServer(t)

	received := make(chan domain.SubmissionMessage, 1)
	env.bus.Subscribe(context.Background(), "tenant-001", domain.TopicAssessmentRequested, func(ctx context.Context, msg *domain.Message) error {
		var m domain.SubmissionMessage
		json.Unmarshal(msg.Payload, &m)
		received <- m
		return nil
	})

	rr := env.do(t, http.MethodPost, "/risk/submissions", application())
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["id"] == "" || resp["status"] != "queued" {
		t.Errorf("unexpected response %v", resp)
	}

	select {
	case m := <-received:
		if m.AssessmentID != resp["id"] {
			t.Errorf("expected id %s, got %s", resp["id"], m.AssessmentID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("submission not published")
	}

	app := application()
	app["creditScore"] = 100
	if rr := env.do(t, http.MethodPost, "/risk/submissions", app); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rr.Code)
	}
}

func TestAssessmentRetrieval(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/risk/assess", application())
	var created AssessResponse
	json.Unmarshal(rr.Body.Bytes(), &created)

	t.Run("Get", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/assessments/"+created.ID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var rec domain.AssessmentRecord
		json.Unmarshal(rr.Body.Bytes(), &rec)
		if rec.ID != created.ID || rec.Assessment == nil || rec.Assessment.TotalScore != 25 {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/assessments/non-existent", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("OtherTenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/assessments/"+created.ID, nil)
		req.Header.Set(TenantIDHeader, "tenant-002")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 across tenants, got %d", rr.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		env.do(t, http.MethodPost, "/risk/assess", application())

		rr := env.do(t, http.MethodGet, "/assessments?limit=1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 record, got %d", resp.Count)
		}

		if rr := env.do(t, http.MethodGet, "/assessments?limit=abc", nil); rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestTablesEndpoint(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/risk/tables", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var view scoring.TablesView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to parse tables: %v", err)
	}
	if view.Version != scoring.TablesVersion || len(view.Tables) != 5 || len(view.Thresholds) != 4 {
		t.Errorf("unexpected tables view: %+v", view)
	}
}

func TestCreditEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("QueryMock", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/credit/query", CreditQueryRequest{CompanyName: "深圳示例科技有限公司"})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var report domain.CreditReport
		json.Unmarshal(rr.Body.Bytes(), &report)
		if !report.IsMock || report.Score < credit.MockScoreMin || report.Score > credit.MockScoreMax {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("DisabledProviderFallsBack", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/credit/query", CreditQueryRequest{CompanyName: "示例公司", Provider: "qichacha"})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var report domain.CreditReport
		json.Unmarshal(rr.Body.Bytes(), &report)
		if !report.IsMock {
			t.Error("expected simulated report")
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/credit/query", CreditQueryRequest{CompanyName: "示例公司", Provider: "nope"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingCompany", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/credit/query", CreditQueryRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("StatsAndProviders", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/credit/stats", nil)
		var stats struct {
			Providers []domain.ProviderUsage `json:"providers"`
		}
		json.Unmarshal(rr.Body.Bytes(), &stats)
		if len(stats.Providers) != 3 {
			t.Errorf("expected 3 providers, got %d", len(stats.Providers))
		}

		rr = env.do(t, http.MethodGet, "/credit/providers", nil)
		json.Unmarshal(rr.Body.Bytes(), &stats)
		if len(stats.Providers) != 4 || stats.Providers[3].ID != credit.MockProviderID {
			t.Errorf("expected providers plus mock, got %+v", stats.Providers)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		if rr := env.do(t, http.MethodPost, "/credit/reset-stats", nil); rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if rr := env.do(t, http.MethodPost, "/credit/reset-stats", map[string]string{"provider": "jingdong"}); rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		if rr := env.do(t, http.MethodPost, "/credit/reset-stats", map[string]string{"provider": "nope"}); rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRulesEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules", nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 3 {
			t.Errorf("expected 3 enabled sample rules, got %d", resp.Count)
		}
	})

	t.Run("Get", func(t *testing.T) {
		if rr := env.do(t, http.MethodGet, "/rules/repeat-applications", nil); rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		if rr := env.do(t, http.MethodGet, "/rules/missing", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		one := 1.0
		rr := env.do(t, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "large-loan",
			Name:       "Large Loan",
			Expression: "loan_amount >= 5000",
			Bands: []domain.RuleBand{
				{UpperLimit: &one, Outcome: domain.RuleOutcomePass, Reason: "ok"},
				{LowerLimit: &one, Outcome: domain.RuleOutcomeReview, Reason: "large"},
			},
			Enabled: true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		if rr := env.do(t, http.MethodGet, "/rules/large-loan", nil); rr.Code != http.StatusNotFound {
			t.Errorf("rule must not be live before reload, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodPost, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if rr := env.do(t, http.MethodGet, "/rules/large-loan", nil); rr.Code != http.StatusOK {
			t.Errorf("expected rule after reload, got %d", rr.Code)
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", CreateRuleRequest{ID: "bad", Name: "Bad", Expression: "loan_amount >"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
		rr = env.do(t, http.MethodPost, "/rules", CreateRuleRequest{Name: "No ID", Expression: "true"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestOperationalEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		var resp struct {
			Status  string            `json:"status"`
			Version string            `json:"version"`
			Checks  map[string]string `json:"checks"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != "healthy" || resp.Version != "test-v1" {
			t.Errorf("unexpected health %+v", resp)
		}
		if resp.Checks["repository"] != "ok" || resp.Checks["cache"] != "ok" || resp.Checks["bus"] != "ok" {
			t.Errorf("unexpected checks %v", resp.Checks)
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "go_goroutines") {
			t.Error("expected runtime metrics")
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/risk/assess", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Error("expected CORS origin header")
		}
	})
}
