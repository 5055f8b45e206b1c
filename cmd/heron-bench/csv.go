package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Application is one CSV row.
type Application struct {
	CompanyName      string
	AnnualRevenue    int64
	LoanAmount       int64
	LoanTermMonths   int
	Industry         string
	BusinessAgeYears int
	CreditScore      int

	// Expected is the labelled risk level, empty when the row is unlabelled.
	Expected string
}

// Request renders the row as a POST /risk/assess body.
func (a Application) Request() map[string]any {
	return map[string]any{
		"companyName":      a.CompanyName,
		"annualRevenue":    a.AnnualRevenue,
		"loanAmount":       a.LoanAmount,
		"loanTermMonths":   a.LoanTermMonths,
		"industry":         a.Industry,
		"businessAgeYears": a.BusinessAgeYears,
		"creditScore":      a.CreditScore,
	}
}

var requiredColumns = []string{
	"company_name",
	"annual_revenue",
	"loan_amount",
	"loan_term_months",
	"industry",
	"business_age_years",
	"credit_score",
}

// readApplications parses a header-led CSV. Column names are matched case
// insensitively; expected_level is optional. Malformed rows are skipped.
func readApplications(r io.Reader, limit int) ([]Application, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	expectedIdx, labelled := colIndex["expected_level"]

	var apps []Application
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		field := func(name string) string {
			i := colIndex[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		revenue, err1 := strconv.ParseInt(field("annual_revenue"), 10, 64)
		loan, err2 := strconv.ParseInt(field("loan_amount"), 10, 64)
		term, err3 := strconv.Atoi(field("loan_term_months"))
		age, err4 := strconv.Atoi(field("business_age_years"))
		score, err5 := strconv.Atoi(field("credit_score"))
		if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
			continue
		}

		app := Application{
			CompanyName:      field("company_name"),
			AnnualRevenue:    revenue,
			LoanAmount:       loan,
			LoanTermMonths:   term,
			Industry:         strings.ToLower(field("industry")),
			BusinessAgeYears: age,
			CreditScore:      score,
		}
		if labelled && expectedIdx < len(record) {
			app.Expected = strings.ToLower(strings.TrimSpace(record[expectedIdx]))
		}
		apps = append(apps, app)

		if limit > 0 && len(apps) >= limit {
			break
		}
	}

	return apps, nil
}
