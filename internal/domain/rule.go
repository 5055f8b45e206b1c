package domain

// RuleConfig defines an operator-authored screening rule.
// Screening rules produce advisories next to an assessment; they never
// change its score, level or recommendation.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the application variables
	Expression string `json:"expression"`

	// Outcome bands for value-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	Enabled bool `json:"enabled"`
}

// RuleBand maps a value range to an outcome.
// Lower is inclusive, upper exclusive; nil bounds are unbounded.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // ".pass", ".review", ".fail"
	Reason     string   `json:"reason"`
}

// RuleResult is the advisory produced by one screening rule.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	RuleName  string  `json:"ruleName"`
	Outcome   string  `json:"outcome"`
	Value     float64 `json:"value"`
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Flagged reports whether the advisory asks for attention.
func (r RuleResult) Flagged() bool {
	return r.Outcome == RuleOutcomeFail || r.Outcome == RuleOutcomeReview
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeFail   = ".fail"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)

// GlobalTenantID is used for rules and cache entries shared by all tenants.
const GlobalTenantID = "*"
