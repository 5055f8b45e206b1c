package domain

import (
	"errors"
	"strings"
)

// AssessmentInput is an application as submitted over the API or read from a
// file. Pointer fields tell a missing field apart from a zero value.
type AssessmentInput struct {
	CompanyName      *string `json:"companyName"`
	AnnualRevenue    *int64  `json:"annualRevenue"`
	LoanAmount       *int64  `json:"loanAmount"`
	LoanTermMonths   *int    `json:"loanTermMonths"`
	Industry         *string `json:"industry"`
	BusinessAgeYears *int    `json:"businessAgeYears"`
	CreditScore      *int    `json:"creditScore"`
	CreditTier       string  `json:"creditTier,omitempty"`
	CreditSource     string  `json:"creditSource,omitempty"`
}

// ToRequest converts the input into an engine request. Missing fields are
// reported as required, other problems as Validate reports them.
func (in AssessmentInput) ToRequest() (AssessmentRequest, error) {
	req := AssessmentRequest{
		CreditTier:   in.CreditTier,
		CreditSource: in.CreditSource,
	}

	missing := map[string]bool{}
	if in.CompanyName != nil {
		req.CompanyName = *in.CompanyName
	} else {
		missing["companyName"] = true
	}
	if in.AnnualRevenue != nil {
		req.AnnualRevenue = *in.AnnualRevenue
	} else {
		missing["annualRevenue"] = true
	}
	if in.LoanAmount != nil {
		req.LoanAmount = *in.LoanAmount
	} else {
		missing["loanAmount"] = true
	}
	if in.LoanTermMonths != nil {
		req.LoanTermMonths = *in.LoanTermMonths
	} else {
		missing["loanTermMonths"] = true
	}
	if in.Industry != nil {
		req.Industry = Industry(strings.ToLower(strings.TrimSpace(*in.Industry)))
	} else {
		missing["industry"] = true
	}
	if in.BusinessAgeYears != nil {
		req.BusinessAgeYears = *in.BusinessAgeYears
	} else {
		missing["businessAgeYears"] = true
	}
	if in.CreditScore != nil {
		req.CreditScore = *in.CreditScore
	} else {
		missing["creditScore"] = true
	}

	err := req.Validate()
	if len(missing) == 0 || err == nil {
		return req, err
	}

	var verr *ValidationError
	errors.As(err, &verr)
	var out ValidationError
	for _, f := range verr.Fields {
		if missing[f.Field] {
			out.Add(f.Field, CodeRequired, f.Field+" is required")
			continue
		}
		out.Add(f.Field, f.Code, f.Message)
	}
	return req, &out
}
