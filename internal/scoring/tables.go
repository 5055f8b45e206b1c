// Package scoring holds the static banding tables and the engine that applies them.
package scoring

import (
	"fmt"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/shopspring/decimal"
)

// TablesVersion identifies the banding tables reported in every assessment.
const TablesVersion = "2024.1"

// Bound is one end of a band.
type Bound struct {
	Value     decimal.Decimal
	Inclusive bool
}

// Band maps a value range to penalty points. A nil bound is unbounded.
type Band struct {
	Lower     *Bound
	Upper     *Bound
	Points    int
	Rationale string
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v decimal.Decimal) bool {
	return b.contains(v.Cmp)
}

// ContainsRatio reports whether num/den lies inside the band. den must be
// positive. The quotient is never formed: num is compared with bound*den, so
// the result is exact at any magnitude.
func (b Band) ContainsRatio(num, den decimal.Decimal) bool {
	return b.contains(func(bound decimal.Decimal) int {
		return num.Cmp(bound.Mul(den))
	})
}

// contains applies the bounds to a value through cmp, which compares the
// value against a bound.
func (b Band) contains(cmp func(bound decimal.Decimal) int) bool {
	if b.Lower != nil {
		c := cmp(b.Lower.Value)
		if c < 0 || (c == 0 && !b.Lower.Inclusive) {
			return false
		}
	}
	if b.Upper != nil {
		c := cmp(b.Upper.Value)
		if c > 0 || (c == 0 && !b.Upper.Inclusive) {
			return false
		}
	}
	return true
}

// Range renders the band in interval notation, e.g. "[740, 800)".
func (b Band) Range() string {
	lo, hi := "(-inf", "+inf)"
	if b.Lower != nil {
		br := "("
		if b.Lower.Inclusive {
			br = "["
		}
		lo = br + b.Lower.Value.String()
	}
	if b.Upper != nil {
		br := ")"
		if b.Upper.Inclusive {
			br = "]"
		}
		hi = b.Upper.Value.String() + br
	}
	return lo + ", " + hi
}

// Direction is how points move as the input value grows.
type Direction int

const (
	// Descending tables award fewer points for larger values.
	Descending Direction = iota
	// Ascending tables award more points for larger values.
	Ascending
)

// Table is an ordered banding table for one numeric factor.
// Bands are scanned top to bottom and the first match wins.
type Table struct {
	Factor    domain.Factor
	Direction Direction
	// Floor is the smallest legal input; the table must cover [Floor, +inf).
	Floor decimal.Decimal
	Bands []Band
}

// Match returns the first band containing v.
func (t *Table) Match(v decimal.Decimal) (Band, error) {
	for _, b := range t.Bands {
		if b.Contains(v) {
			return b, nil
		}
	}
	return Band{}, &domain.TableCoverageError{Factor: t.Factor, Value: v.String()}
}

// MatchRatio returns the first band containing num/den, with den positive.
func (t *Table) MatchRatio(num, den decimal.Decimal) (Band, error) {
	for _, b := range t.Bands {
		if b.ContainsRatio(num, den) {
			return b, nil
		}
	}
	return Band{}, &domain.TableCoverageError{Factor: t.Factor, Value: num.String() + "/" + den.String()}
}

// IndustryBand groups industries that share the same points.
type IndustryBand struct {
	Industries []domain.Industry
	Points     int
	Rationale  string
}

// IndustryTable is the categorical table of the industry factor.
type IndustryTable struct {
	Bands []IndustryBand
}

// Match returns the band listing ind.
func (t *IndustryTable) Match(ind domain.Industry) (IndustryBand, error) {
	for _, b := range t.Bands {
		for _, member := range b.Industries {
			if member == ind {
				return b, nil
			}
		}
	}
	return IndustryBand{}, &domain.TableCoverageError{Factor: domain.FactorIndustry, Value: string(ind)}
}

// TableSet is the complete, versioned set of banding tables.
type TableSet struct {
	Version       string
	CreditScore   Table
	AnnualRevenue Table
	LoanToRevenue Table
	BusinessAge   Table
	Industry      IndustryTable
}

// Numeric returns the numeric tables in evaluation order.
func (s *TableSet) Numeric() []*Table {
	return []*Table{&s.CreditScore, &s.AnnualRevenue, &s.LoanToRevenue, &s.BusinessAge}
}

func atLeast(v string) *Bound { return &Bound{Value: decimal.RequireFromString(v), Inclusive: true} }
func above(v string) *Bound   { return &Bound{Value: decimal.RequireFromString(v)} }
func below(v string) *Bound   { return &Bound{Value: decimal.RequireFromString(v)} }
func atMost(v string) *Bound  { return &Bound{Value: decimal.RequireFromString(v), Inclusive: true} }

// defaultTables is built once and never mutated.
var defaultTables = &TableSet{
	Version: TablesVersion,
	CreditScore: Table{
		Factor:    domain.FactorCreditScore,
		Direction: Descending,
		Floor:     decimal.NewFromInt(domain.CreditScoreMin),
		Bands: []Band{
			{Lower: atLeast("800"), Points: 5, Rationale: "企业信用记录优秀"},
			{Lower: atLeast("740"), Upper: below("800"), Points: 10, Rationale: "企业信用记录很好"},
			{Lower: atLeast("670"), Upper: below("740"), Points: 20, Rationale: "企业信用记录良好"},
			{Lower: atLeast("580"), Upper: below("670"), Points: 40, Rationale: "企业信用记录一般"},
			{Upper: below("580"), Points: 70, Rationale: "企业信用记录很差"},
		},
	},
	AnnualRevenue: Table{
		Factor:    domain.FactorAnnualRevenue,
		Direction: Descending,
		Floor:     decimal.Zero,
		Bands: []Band{
			{Lower: atLeast("10000"), Points: 5, Rationale: "年收入稳定增长"},
			{Lower: atLeast("5000"), Upper: below("10000"), Points: 10, Rationale: "年收入稳定"},
			{Lower: atLeast("1000"), Upper: below("5000"), Points: 20, Rationale: "年收入一般"},
			{Upper: below("1000"), Points: 40, Rationale: "年收入较低"},
		},
	},
	LoanToRevenue: Table{
		Factor:    domain.FactorLoanToRevenue,
		Direction: Ascending,
		Floor:     decimal.Zero,
		Bands: []Band{
			{Upper: atMost("0.10"), Points: 5, Rationale: "贷款金额合理"},
			{Lower: above("0.10"), Upper: atMost("0.30"), Points: 15, Rationale: "贷款金额适中"},
			{Lower: above("0.30"), Upper: atMost("0.50"), Points: 30, Rationale: "贷款金额偏高"},
			{Lower: above("0.50"), Points: 50, Rationale: "贷款金额过高"},
		},
	},
	BusinessAge: Table{
		Factor:    domain.FactorBusinessAge,
		Direction: Descending,
		Floor:     decimal.NewFromInt(1),
		Bands: []Band{
			{Lower: atLeast("15"), Points: 5, Rationale: "经营年限充足"},
			{Lower: atLeast("10"), Upper: below("15"), Points: 10, Rationale: "经营年限良好"},
			{Lower: atLeast("5"), Upper: below("10"), Points: 20, Rationale: "经营年限适中"},
			{Lower: atLeast("3"), Upper: below("5"), Points: 35, Rationale: "经营年限较短"},
			{Upper: below("3"), Points: 50, Rationale: "经营年限很短"},
		},
	},
	Industry: IndustryTable{
		Bands: []IndustryBand{
			{
				Industries: []domain.Industry{domain.IndustryTechnology, domain.IndustryFinance, domain.IndustryHealthcare},
				Points:     5,
				Rationale:  "行业前景良好",
			},
			{
				Industries: []domain.Industry{domain.IndustryManufacturing, domain.IndustryRetail, domain.IndustryService},
				Points:     15,
				Rationale:  "行业前景一般",
			},
			{
				Industries: []domain.Industry{domain.IndustryConstruction, domain.IndustryAgriculture},
				Points:     25,
				Rationale:  "行业风险中等",
			},
			{
				Industries: []domain.Industry{domain.IndustryOther},
				Points:     35,
				Rationale:  "行业风险较高",
			},
		},
	},
}

// Tables returns the process-wide banding tables. Callers must not modify them.
func Tables() *TableSet {
	return defaultTables
}

// String implements fmt.Stringer for log output.
func (d Direction) String() string {
	switch d {
	case Descending:
		return "descending"
	case Ascending:
		return "ascending"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}
