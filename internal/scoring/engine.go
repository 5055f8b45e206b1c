package scoring

import (
	"fmt"

	"github.com/opensource-finance/heron/internal/decision"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/shopspring/decimal"
)

// Engine scores loan applications against a validated table set.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	tables *TableSet
}

// NewEngine returns an engine over the process-wide tables.
// It fails if the tables do not pass ValidateTables.
func NewEngine() (*Engine, error) {
	return NewEngineWithTables(Tables())
}

// NewEngineWithTables returns an engine over a custom table set.
func NewEngineWithTables(set *TableSet) (*Engine, error) {
	if err := ValidateTables(set); err != nil {
		return nil, fmt.Errorf("invalid banding tables: %w", err)
	}
	return &Engine{tables: set}, nil
}

// Tables returns the tables the engine scores with.
func (e *Engine) Tables() *TableSet {
	return e.tables
}

// Evaluate validates req and scores it. A *domain.ValidationError is returned
// for bad input; a *domain.TableCoverageError means the tables are defective.
func (e *Engine) Evaluate(req domain.AssessmentRequest) (domain.Assessment, error) {
	if err := req.Validate(); err != nil {
		return domain.Assessment{}, err
	}

	factors, err := e.EvaluateFactors(req)
	if err != nil {
		return domain.Assessment{}, err
	}

	d := decision.Decide(factors)
	return domain.Assessment{
		TotalScore:     d.TotalScore,
		RiskLevel:      d.RiskLevel,
		Recommendation: d.Recommendation,
		Factors:        factors,
		TableVersion:   e.tables.Version,
	}, nil
}

// EvaluateFactors applies the five tables in evaluation order.
// The request is assumed valid.
func (e *Engine) EvaluateFactors(req domain.AssessmentRequest) ([]domain.FactorResult, error) {
	one := decimal.NewFromInt(1)
	loan, revenue := decimal.NewFromInt(req.LoanAmount), decimal.NewFromInt(req.AnnualRevenue)
	if req.AnnualRevenue <= 0 {
		loan, revenue = decimal.Zero, one
	}

	// Each input is a ratio; plain values are over one.
	inputs := []struct {
		table    *Table
		num, den decimal.Decimal
	}{
		{&e.tables.CreditScore, decimal.NewFromInt(int64(req.CreditScore)), one},
		{&e.tables.AnnualRevenue, decimal.NewFromInt(req.AnnualRevenue), one},
		{&e.tables.LoanToRevenue, loan, revenue},
		{&e.tables.BusinessAge, decimal.NewFromInt(int64(req.BusinessAgeYears)), one},
	}

	factors := make([]domain.FactorResult, 0, len(inputs)+1)
	for _, in := range inputs {
		band, err := in.table.MatchRatio(in.num, in.den)
		if err != nil {
			return nil, err
		}
		factors = append(factors, domain.FactorResult{
			Name:      in.table.Factor,
			Points:    band.Points,
			Rationale: band.Rationale,
		})
	}

	ind, err := e.tables.Industry.Match(req.Industry)
	if err != nil {
		return nil, err
	}
	factors = append(factors, domain.FactorResult{
		Name:      domain.FactorIndustry,
		Points:    ind.Points,
		Rationale: ind.Rationale,
	})

	return factors, nil
}

// LoanToRevenue returns loanAmount / annualRevenue rounded to 16 places.
// It is for display and screening rules only; banding compares the ratio
// exactly through Table.MatchRatio. A non-positive revenue yields zero.
func LoanToRevenue(loanAmount, annualRevenue int64) decimal.Decimal {
	if annualRevenue <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(loanAmount).DivRound(decimal.NewFromInt(annualRevenue), 16)
}
