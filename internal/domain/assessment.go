package domain

import (
	"fmt"
	"strings"
	"time"
)

// Industry is the closed set of industries the scoring tables know about.
type Industry string

const (
	IndustryTechnology    Industry = "technology"
	IndustryFinance       Industry = "finance"
	IndustryHealthcare    Industry = "healthcare"
	IndustryManufacturing Industry = "manufacturing"
	IndustryRetail        Industry = "retail"
	IndustryService       Industry = "service"
	IndustryConstruction  Industry = "construction"
	IndustryAgriculture   Industry = "agriculture"
	IndustryOther         Industry = "other"
)

// Industries lists every valid industry in declaration order.
func Industries() []Industry {
	return []Industry{
		IndustryTechnology,
		IndustryFinance,
		IndustryHealthcare,
		IndustryManufacturing,
		IndustryRetail,
		IndustryService,
		IndustryConstruction,
		IndustryAgriculture,
		IndustryOther,
	}
}

// Valid reports whether i is one of the enumerated industries.
func (i Industry) Valid() bool {
	for _, known := range Industries() {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIndustry converts user input into an Industry.
// Unknown values are rejected instead of falling through to "other".
func ParseIndustry(s string) (Industry, error) {
	ind := Industry(strings.ToLower(strings.TrimSpace(s)))
	if !ind.Valid() {
		return "", fmt.Errorf("%w: unknown industry %q", ErrInvalidInput, s)
	}
	return ind, nil
}

// RiskLevel is the ordered categorical label derived from the total score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// Rank returns the position of the level in severity order (0 = low).
// Unknown levels rank -1.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskExtreme:
		return 3
	default:
		return -1
	}
}

// Label returns the display label shown to loan officers.
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "低风险"
	case RiskMedium:
		return "中风险"
	case RiskHigh:
		return "高风险"
	case RiskExtreme:
		return "极高风险"
	default:
		return string(l)
	}
}

// Recommendation is the advised action for a risk level.
type Recommendation string

const (
	RecommendApprove        Recommendation = "approve"
	RecommendFurtherReview  Recommendation = "further_review"
	RecommendReject         Recommendation = "reject"
	RecommendStronglyReject Recommendation = "strongly_reject"
)

// Label returns the display label shown to loan officers.
func (r Recommendation) Label() string {
	switch r {
	case RecommendApprove:
		return "建议批准贷款"
	case RecommendFurtherReview:
		return "建议进一步审核"
	case RecommendReject:
		return "建议拒绝贷款"
	case RecommendStronglyReject:
		return "强烈建议拒绝贷款"
	default:
		return string(r)
	}
}

// Factor names one of the five scored attributes.
type Factor string

const (
	FactorCreditScore   Factor = "credit_score"
	FactorAnnualRevenue Factor = "annual_revenue"
	FactorLoanToRevenue Factor = "loan_to_revenue"
	FactorBusinessAge   Factor = "business_age"
	FactorIndustry      Factor = "industry"
)

// Factors returns the factors in evaluation order.
func Factors() []Factor {
	return []Factor{
		FactorCreditScore,
		FactorAnnualRevenue,
		FactorLoanToRevenue,
		FactorBusinessAge,
		FactorIndustry,
	}
}

// Credit score bounds accepted from the bureau adapter.
const (
	CreditScoreMin = 300
	CreditScoreMax = 850
)

// LoanTerms lists the accepted loan terms in months.
func LoanTerms() []int {
	return []int{6, 12, 24, 36}
}

// AssessmentRequest is the fully populated input to the scoring engine.
// Amounts are in 万元 (10k CNY).
type AssessmentRequest struct {
	CompanyName      string   `json:"companyName"`
	AnnualRevenue    int64    `json:"annualRevenue"`
	LoanAmount       int64    `json:"loanAmount"`
	LoanTermMonths   int      `json:"loanTermMonths"`
	Industry         Industry `json:"industry"`
	BusinessAgeYears int      `json:"businessAgeYears"`
	CreditScore      int      `json:"creditScore"`

	// Provenance of the credit score. Audit only, never scored.
	CreditTier   string `json:"creditTier,omitempty"`
	CreditSource string `json:"creditSource,omitempty"`
}

// Validate checks every field and reports all offending fields at once.
func (r AssessmentRequest) Validate() error {
	var verr ValidationError

	if strings.TrimSpace(r.CompanyName) == "" {
		verr.Add("companyName", CodeRequired, "companyName is required")
	}
	if r.AnnualRevenue <= 0 {
		verr.Add("annualRevenue", CodeNotPositive, "annualRevenue must be greater than 0")
	}
	if r.LoanAmount <= 0 {
		verr.Add("loanAmount", CodeNotPositive, "loanAmount must be greater than 0")
	}
	if !validTerm(r.LoanTermMonths) {
		verr.Add("loanTermMonths", CodeNotEnumerated,
			fmt.Sprintf("loanTermMonths must be one of %v", LoanTerms()))
	}
	if !r.Industry.Valid() {
		verr.Add("industry", CodeNotEnumerated,
			fmt.Sprintf("industry %q is not a known industry", r.Industry))
	}
	if r.BusinessAgeYears < 1 {
		verr.Add("businessAgeYears", CodeOutOfRange, "businessAgeYears must be at least 1")
	}
	if r.CreditScore < CreditScoreMin || r.CreditScore > CreditScoreMax {
		verr.Add("creditScore", CodeOutOfRange,
			fmt.Sprintf("creditScore must be between %d and %d", CreditScoreMin, CreditScoreMax))
	}

	if verr.Empty() {
		return nil
	}
	return &verr
}

func validTerm(months int) bool {
	for _, t := range LoanTerms() {
		if months == t {
			return true
		}
	}
	return false
}

// FactorResult is the contribution of one banding table to the total score.
type FactorResult struct {
	Name      Factor `json:"name"`
	Points    int    `json:"points"`
	Rationale string `json:"rationale"`
}

// Assessment is the immutable output of the scoring engine.
type Assessment struct {
	TotalScore     int            `json:"totalScore"`
	RiskLevel      RiskLevel      `json:"riskLevel"`
	Recommendation Recommendation `json:"recommendation"`
	Factors        []FactorResult `json:"factors"`
	TableVersion   string         `json:"tableVersion"`
}

// KeyFactors returns the rationale of each factor in evaluation order.
func (a Assessment) KeyFactors() []string {
	out := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		out = append(out, f.Rationale)
	}
	return out
}

// AssessmentRecord is a persisted assessment with its request and advisories.
type AssessmentRecord struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	Status     string            `json:"status"`
	Request    AssessmentRequest `json:"request"`
	Assessment *Assessment       `json:"assessment,omitempty"`
	Advisories []RuleResult      `json:"advisories,omitempty"`
	Error      *ErrorBody        `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	Metadata   RecordMetadata    `json:"metadata"`
}

// Record status values.
const (
	RecordCompleted = "completed"
	RecordFailed    = "failed"
)

// RecordMetadata contains processing information.
type RecordMetadata struct {
	TraceID            string `json:"traceId,omitempty"`
	ScoringMicros      int64  `json:"scoringMicros"`
	TotalMs            int64  `json:"totalMs"`
	RulesEvaluated     int    `json:"rulesEvaluated"`
	RecentApplications int64  `json:"recentApplications"`
	EngineVersion      string `json:"engineVersion"`
}
