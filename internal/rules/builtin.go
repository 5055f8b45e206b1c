package rules

import "github.com/opensource-finance/heron/internal/domain"

// SampleRules returns the starter screening rules seeded into an empty
// repository. Operators edit or disable them through the rules API.
func SampleRules() []*domain.RuleConfig {
	zero, one, three, five := 0.0, 1.0, 3.0, 5.0

	return []*domain.RuleConfig{
		{
			ID:          "repeat-applications",
			TenantID:    domain.GlobalTenantID,
			Name:        "Repeat Applications",
			Description: "Flags companies that applied several times within the velocity window",
			Version:     "1.0.0",
			Expression:  "recent_applications",
			Bands: []domain.RuleBand{
				{UpperLimit: &three, Outcome: domain.RuleOutcomePass, Reason: "申请频率正常"},
				{LowerLimit: &three, UpperLimit: &five, Outcome: domain.RuleOutcomeReview, Reason: "近期多次申请"},
				{LowerLimit: &five, Outcome: domain.RuleOutcomeFail, Reason: "近期申请过于频繁"},
			},
			Enabled: true,
		},
		{
			ID:          "young-business-large-loan",
			TenantID:    domain.GlobalTenantID,
			Name:        "Young Business Large Loan",
			Description: "Flags businesses under three years old asking for more than half their revenue",
			Version:     "1.0.0",
			Expression:  "business_age_years < 3 && loan_to_revenue > 0.5",
			Bands: []domain.RuleBand{
				{LowerLimit: &zero, UpperLimit: &one, Outcome: domain.RuleOutcomePass, Reason: "经营年限与贷款规模匹配"},
				{LowerLimit: &one, Outcome: domain.RuleOutcomeReview, Reason: "新设企业申请大额贷款"},
			},
			Enabled: true,
		},
		{
			ID:          "long-term-high-leverage",
			TenantID:    domain.GlobalTenantID,
			Name:        "Long Term High Leverage",
			Description: "Flags 36 month loans above 30% of annual revenue",
			Version:     "1.0.0",
			Expression:  "loan_term_months >= 36 && loan_to_revenue > 0.3",
			Bands: []domain.RuleBand{
				{LowerLimit: &zero, UpperLimit: &one, Outcome: domain.RuleOutcomePass, Reason: "期限与杠杆匹配"},
				{LowerLimit: &one, Outcome: domain.RuleOutcomeReview, Reason: "长期限高杠杆贷款"},
			},
			Enabled: true,
		},
		{
			ID:          "missing-credit-tier",
			TenantID:    domain.GlobalTenantID,
			Name:        "Missing Credit Tier",
			Description: "Flags approvals with no recorded credit tier",
			Version:     "1.0.0",
			Expression:  "recommendation == 'approve' && credit_tier == ''",
			Bands: []domain.RuleBand{
				{LowerLimit: &zero, UpperLimit: &one, Outcome: domain.RuleOutcomePass, Reason: "信用数据来源完整"},
				{LowerLimit: &one, Outcome: domain.RuleOutcomeReview, Reason: "批准建议缺少信用等级"},
			},
			Enabled: false,
		},
	}
}
