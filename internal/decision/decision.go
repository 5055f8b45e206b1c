// Package decision turns factor points into the final risk decision.
// It aggregates the points of the five factors, classifies the clamped
// total into a risk level and maps the level to a recommendation.
package decision

import (
	"github.com/opensource-finance/heron/internal/domain"
)

// Score bounds of the aggregated total.
const (
	MinScore = 0
	MaxScore = 100
)

// Threshold is the inclusive upper score of a risk level.
type Threshold struct {
	MaxScore int              `json:"maxScore"`
	Level    domain.RiskLevel `json:"riskLevel"`
}

// thresholds are ordered; the first threshold whose MaxScore is not exceeded wins.
var thresholds = []Threshold{
	{MaxScore: 30, Level: domain.RiskLow},
	{MaxScore: 60, Level: domain.RiskMedium},
	{MaxScore: 80, Level: domain.RiskHigh},
	{MaxScore: MaxScore, Level: domain.RiskExtreme},
}

// Thresholds returns a copy of the classifier thresholds.
func Thresholds() []Threshold {
	return append([]Threshold(nil), thresholds...)
}

// Decision is the outcome of aggregating one set of factor results.
type Decision struct {
	// RawScore is the unclamped sum of factor points.
	RawScore       int
	TotalScore     int
	RiskLevel      domain.RiskLevel
	Recommendation domain.Recommendation
}

// Decide aggregates, classifies and recommends in one step.
func Decide(factors []domain.FactorResult) Decision {
	raw := Sum(factors)
	total := Clamp(raw)
	level := Classify(total)
	return Decision{
		RawScore:       raw,
		TotalScore:     total,
		RiskLevel:      level,
		Recommendation: Recommend(level),
	}
}

// Sum adds the points of every factor.
func Sum(factors []domain.FactorResult) int {
	sum := 0
	for _, f := range factors {
		sum += f.Points
	}
	return sum
}

// Aggregate returns the factor point sum clamped to [MinScore, MaxScore].
// Distinct very-bad combinations collapse onto MaxScore.
func Aggregate(factors []domain.FactorResult) int {
	return Clamp(Sum(factors))
}

// Clamp constrains score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Classify maps a total score to its risk level.
// Scores outside the scale are clamped first.
func Classify(score int) domain.RiskLevel {
	score = Clamp(score)
	for _, t := range thresholds {
		if score <= t.MaxScore {
			return t.Level
		}
	}
	return domain.RiskExtreme
}

// Recommend maps a risk level to the advised action.
// An unknown level is sent to further review.
func Recommend(level domain.RiskLevel) domain.Recommendation {
	switch level {
	case domain.RiskLow:
		return domain.RecommendApprove
	case domain.RiskMedium:
		return domain.RecommendFurtherReview
	case domain.RiskHigh:
		return domain.RecommendReject
	case domain.RiskExtreme:
		return domain.RecommendStronglyReject
	default:
		return domain.RecommendFurtherReview
	}
}

// Reasons extracts the reasons of the advisories that ask for attention.
func Reasons(advisories []domain.RuleResult) []string {
	var reasons []string
	for _, r := range advisories {
		if r.Flagged() && r.Reason != "" {
			reasons = append(reasons, r.Reason)
		}
	}
	return reasons
}
