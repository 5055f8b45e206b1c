// Package rules provides the CEL-Go based screening rule engine.
//
// Screening rules are operator-authored expressions over a scored application.
// Their advisories travel with the assessment but never change its score.
package rules

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/scoring"
)

// Engine is the CEL-based screening rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("application", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("company_name", cel.StringType),
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("credit_tier", cel.StringType),
		cel.Variable("annual_revenue", cel.IntType),
		cel.Variable("loan_amount", cel.IntType),
		cel.Variable("loan_term_months", cel.IntType),
		cel.Variable("industry", cel.StringType),
		cel.Variable("business_age_years", cel.IntType),
		cel.Variable("loan_to_revenue", cel.DoubleType),
		// Outcome of the scoring engine
		cel.Variable("total_score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("recommendation", cel.StringType),
		cel.Variable("recent_applications", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: rule config is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput is a scored application as seen by the screening rules.
type EvaluateInput struct {
	TenantID           string
	AssessmentID       string
	Request            domain.AssessmentRequest
	Assessment         domain.Assessment
	RecentApplications int64
}

func (in *EvaluateInput) activation() map[string]any {
	req := in.Request
	ratio := scoring.LoanToRevenue(req.LoanAmount, req.AnnualRevenue).InexactFloat64()

	vars := map[string]any{
		"company_name":        req.CompanyName,
		"credit_score":        int64(req.CreditScore),
		"credit_tier":         req.CreditTier,
		"annual_revenue":      req.AnnualRevenue,
		"loan_amount":         req.LoanAmount,
		"loan_term_months":    int64(req.LoanTermMonths),
		"industry":            string(req.Industry),
		"business_age_years":  int64(req.BusinessAgeYears),
		"loan_to_revenue":     ratio,
		"total_score":         int64(in.Assessment.TotalScore),
		"risk_level":          string(in.Assessment.RiskLevel),
		"recommendation":      string(in.Assessment.Recommendation),
		"recent_applications": in.RecentApplications,
	}

	app := make(map[string]any, len(vars))
	for k, v := range vars {
		app[k] = v
	}
	vars["application"] = app
	return vars
}

// EvaluateAll evaluates all loaded rules in parallel.
// Results are ordered by rule ID.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: evaluate input is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}
	slices.SortFunc(rules, func(a, b *CompiledRule) int {
		return strings.Compare(a.Config.ID, b.Config.ID)
	})

	activation := input.activation()

	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = domain.RuleResult{
					RuleID:   r.Config.ID,
					RuleName: r.Config.Name,
					Outcome:  domain.RuleOutcomeError,
					Reason:   ctx.Err().Error(),
				}
				return
			}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, ctx.Err()
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID:   rule.Config.ID,
		RuleName: rule.Config.Name,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	value := toValue(out)
	result.Value = value
	result.Outcome, result.Reason = matchBand(value, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toValue converts a CEL value to a number. true is 1, false is 0.
func toValue(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand returns the outcome of the first band containing value.
// Bands are lower inclusive, upper exclusive; nil limits are unbounded.
// A value no band contains passes.
func matchBand(value float64, bands []domain.RuleBand) (string, string) {
	for _, band := range bands {
		lower, upper := math.Inf(-1), math.Inf(1)
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if band.UpperLimit != nil {
			upper = *band.UpperLimit
		}
		if value >= lower && value < upper {
			return band.Outcome, band.Reason
		}
	}

	if len(bands) == 0 && value != 0 {
		return domain.RuleOutcomeReview, "rule matched"
	}
	return domain.RuleOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules replaces every loaded rule with the enabled rules in configs.
// Nothing changes if any rule fails to compile.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// GetLoadedRules returns the loaded rule configurations ordered by ID.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	slices.SortFunc(rules, func(a, b *domain.RuleConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return rules
}

// GetLoadedRule returns a loaded rule by ID.
func (e *Engine) GetLoadedRule(id string) (*domain.RuleConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	compiled, ok := e.compiledRules[id]
	if !ok {
		return nil, false
	}
	return compiled.Config, true
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domain.ErrInvalidInput)
	}
	for i, band := range cfg.Bands {
		if !validOutcome(band.Outcome) {
			return nil, fmt.Errorf("%w: rule %s band %d: unknown outcome %q", domain.ErrInvalidInput, cfg.ID, i, band.Outcome)
		}
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

func validOutcome(outcome string) bool {
	switch outcome {
	case domain.RuleOutcomePass, domain.RuleOutcomeReview, domain.RuleOutcomeFail:
		return true
	}
	return false
}
