package scoring

import (
	"errors"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTablesValid(t *testing.T) {
	require.NoError(t, ValidateTables(Tables()))
}

// matches counts the bands of t that contain v.
func matches(t *Table, v decimal.Decimal) int {
	n := 0
	for _, b := range t.Bands {
		if b.Contains(v) {
			n++
		}
	}
	return n
}

func TestCreditScoreCoverageExhaustive(t *testing.T) {
	tbl := &Tables().CreditScore
	for cs := domain.CreditScoreMin; cs <= domain.CreditScoreMax; cs++ {
		require.Equal(t, 1, matches(tbl, decimal.NewFromInt(int64(cs))), "creditScore=%d", cs)
	}
}

func TestRevenueCoverage(t *testing.T) {
	tbl := &Tables().AnnualRevenue
	for rev := int64(0); rev <= 20000; rev++ {
		require.Equal(t, 1, matches(tbl, decimal.NewFromInt(rev)), "revenue=%d", rev)
	}
	assert.Equal(t, 1, matches(tbl, decimal.NewFromInt(1<<50)))
}

func TestRatioCoverage(t *testing.T) {
	tbl := &Tables().LoanToRevenue
	step := decimal.RequireFromString("0.0001")
	for v := decimal.Zero; v.LessThanOrEqual(decimal.NewFromInt(2)); v = v.Add(step) {
		require.Equal(t, 1, matches(tbl, v), "ratio=%s", v)
	}
}

func TestBusinessAgeCoverage(t *testing.T) {
	tbl := &Tables().BusinessAge
	for age := int64(1); age <= 200; age++ {
		require.Equal(t, 1, matches(tbl, decimal.NewFromInt(age)), "age=%d", age)
	}
}

func TestIndustryCoverage(t *testing.T) {
	for _, ind := range domain.Industries() {
		_, err := Tables().Industry.Match(ind)
		require.NoError(t, err, "industry=%s", ind)
	}
}

func TestBandRange(t *testing.T) {
	assert.Equal(t, "[740, 800)", Tables().CreditScore.Bands[1].Range())
	assert.Equal(t, "(-inf, 0.1]", Tables().LoanToRevenue.Bands[0].Range())
	assert.Equal(t, "(0.5, +inf)", Tables().LoanToRevenue.Bands[3].Range())
}

func cloneSet() *TableSet {
	src := Tables()
	set := *src
	for _, t := range []*Table{&set.CreditScore, &set.AnnualRevenue, &set.LoanToRevenue, &set.BusinessAge} {
		t.Bands = append([]Band(nil), t.Bands...)
	}
	set.Industry.Bands = append([]IndustryBand(nil), src.Industry.Bands...)
	return &set
}

func TestValidateTablesDetectsDefects(t *testing.T) {
	t.Run("Gap", func(t *testing.T) {
		set := cloneSet()
		set.CreditScore.Bands[1].Lower = atLeast("750")
		err := ValidateTables(set)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrTableCoverage))
		assert.Contains(t, err.Error(), "gap")
	})

	t.Run("Overlap", func(t *testing.T) {
		set := cloneSet()
		set.AnnualRevenue.Bands[1].Upper = below("12000")
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overlap")
	})

	t.Run("SharedBoundary", func(t *testing.T) {
		set := cloneSet()
		set.LoanToRevenue.Bands[1].Lower = atLeast("0.10")
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "both include")
	})

	t.Run("FloorNotCovered", func(t *testing.T) {
		set := cloneSet()
		last := len(set.BusinessAge.Bands) - 1
		set.BusinessAge.Bands[last].Lower = atLeast("2")
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not covered")
	})

	t.Run("PointsAgainstDirection", func(t *testing.T) {
		set := cloneSet()
		set.CreditScore.Bands[0].Points = 90
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "points rise")
	})

	t.Run("MissingIndustry", func(t *testing.T) {
		set := cloneSet()
		set.Industry.Bands = set.Industry.Bands[:3]
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "other is not covered")
	})

	t.Run("DuplicateIndustry", func(t *testing.T) {
		set := cloneSet()
		set.Industry.Bands = append(set.Industry.Bands, IndustryBand{
			Industries: []domain.Industry{domain.IndustryFinance},
			Points:     1,
			Rationale:  "dup",
		})
		err := ValidateTables(set)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listed 2 times")
	})

	t.Run("EngineRefusesDefectiveTables", func(t *testing.T) {
		set := cloneSet()
		set.Version = ""
		_, err := NewEngineWithTables(set)
		require.Error(t, err)
	})

	t.Run("OriginalUntouched", func(t *testing.T) {
		require.NoError(t, ValidateTables(Tables()))
	})
}

func TestEvaluateSurfacesCoverageError(t *testing.T) {
	set := cloneSet()
	e := &Engine{tables: set}
	// Drop the lowest credit band without validation to simulate a defect.
	set.CreditScore.Bands = set.CreditScore.Bands[:4]

	req := baseRequest()
	req.CreditScore = 400

	_, err := e.Evaluate(req)
	var cov *domain.TableCoverageError
	require.True(t, errors.As(err, &cov))
	assert.Equal(t, domain.FactorCreditScore, cov.Factor)
	assert.Equal(t, "400", cov.Value)
	assert.True(t, errors.Is(err, domain.ErrTableCoverage))
}

func TestDescribe(t *testing.T) {
	view := Tables().Describe()

	assert.Equal(t, TablesVersion, view.Version)
	require.Len(t, view.Tables, 5)
	assert.Equal(t, domain.FactorIndustry, view.Tables[4].Factor)
	assert.Equal(t, "technology, finance, healthcare", view.Tables[4].Bands[0].Range)
	require.Len(t, view.Thresholds, 4)
	assert.Equal(t, 30, view.Thresholds[0].MaxScore)
}
