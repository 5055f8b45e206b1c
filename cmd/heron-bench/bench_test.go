package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Company_Name,annual_revenue,loan_amount,loan_term_months,industry,business_age_years,credit_score,expected_level
Alpha Tech,12000,500,12,Technology,20,820,low
Beta Build,500,400,36,construction,2,550,extreme
Broken Row,abc,400,36,construction,2,550,high
Gamma Retail,3000,600,24,retail,6,700,extreme
`

func TestReadApplications(t *testing.T) {
	apps, err := readApplications(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)
	require.Len(t, apps, 3, "malformed row is skipped")

	assert.Equal(t, "Alpha Tech", apps[0].CompanyName)
	assert.Equal(t, "technology", apps[0].Industry)
	assert.Equal(t, int64(12000), apps[0].AnnualRevenue)
	assert.Equal(t, 820, apps[0].CreditScore)
	assert.Equal(t, "low", apps[0].Expected)
	assert.Equal(t, "Gamma Retail", apps[2].CompanyName)

	body := apps[1].Request()
	assert.Equal(t, int64(400), body["loanAmount"])
	assert.Equal(t, 36, body["loanTermMonths"])
}

func TestReadApplicationsLimit(t *testing.T) {
	apps, err := readApplications(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestReadApplicationsUnlabelled(t *testing.T) {
	csv := "company_name,annual_revenue,loan_amount,loan_term_months,industry,business_age_years,credit_score\nA,1,1,12,retail,1,700\n"
	apps, err := readApplications(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Empty(t, apps[0].Expected)
}

func TestReadApplicationsMissingColumn(t *testing.T) {
	_, err := readApplications(strings.NewReader("company_name,loan_amount\nA,1\n"), 0)
	assert.ErrorContains(t, err, "annual_revenue")
}

func TestReport(t *testing.T) {
	r := NewReport()
	r.Record("low", &assessResponse{RiskLevel: "low"}, nil, 2*time.Millisecond)
	r.Record("high", &assessResponse{RiskLevel: "extreme"}, nil, 4*time.Millisecond)
	r.Record("", &assessResponse{RiskLevel: "medium"}, nil, time.Millisecond)
	r.Record("low", nil, errors.New("status 500"), 8*time.Millisecond)

	assert.Equal(t, int64(4), r.Processed)
	assert.Equal(t, int64(1), r.Errors)
	assert.Equal(t, int64(2), r.Labelled)
	assert.Equal(t, int64(1), r.Agreed)
	assert.InDelta(t, 0.5, r.Agreement(), 1e-9)
	assert.Equal(t, int64(1), r.Matrix["high"]["extreme"])
	assert.Equal(t, int64(1), r.Levels["medium"])
	assert.Equal(t, 8*time.Millisecond, r.MaxLatency)

	var out strings.Builder
	r.Print(&out)
	assert.Contains(t, out.String(), "Agreement:  0.5000")
}
