package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/opensource-finance/heron/internal/credit"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/spf13/cobra"
)

type assessOptions struct {
	file        string
	company     string
	revenue     int64
	loan        int64
	term        int
	industry    string
	age         int
	creditScore int
	provider    string
}

func newAssessCmd() *cobra.Command {
	var opts assessOptions
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score one application offline and print the assessment as JSON",
		Long: `Score one application without a running server.

The application is read from --file (JSON, same shape as POST /risk/assess)
or from flags. Every field is required and validated as the API does. When
the credit score is not given at all, it is resolved through the credit
adapter; the simulated bureau answers unless a provider is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "JSON application file")
	f.StringVar(&opts.company, "company", "", "company name")
	f.Int64Var(&opts.revenue, "revenue", 0, "annual revenue (万元)")
	f.Int64Var(&opts.loan, "loan", 0, "loan amount (万元)")
	f.IntVar(&opts.term, "term", 0, "loan term in months (6, 12, 24 or 36)")
	f.StringVar(&opts.industry, "industry", "", "industry")
	f.IntVar(&opts.age, "age", 0, "business age in years")
	f.IntVar(&opts.creditScore, "credit-score", 0, "credit score (300-850)")
	f.StringVar(&opts.provider, "provider", "", "credit provider used when no credit score is given")
	return cmd
}

func runAssess(cmd *cobra.Command, opts *assessOptions) error {
	in, err := opts.input(cmd.Flags().Changed)
	if err != nil {
		return err
	}

	if in.CreditScore == nil && in.CompanyName != nil && strings.TrimSpace(*in.CompanyName) != "" {
		cfg, err := domain.LoadConfig(configPath)
		if err != nil {
			return err
		}
		client, err := credit.NewClient(cfg.Credit, nil, nil)
		if err != nil {
			return err
		}
		report, err := client.GetCreditScore(cmd.Context(), *in.CompanyName, opts.provider)
		if err != nil {
			return fmt.Errorf("credit lookup failed: %w", err)
		}
		in.CreditScore = &report.Score
		in.CreditTier = report.Tier
		in.CreditSource = report.Source
	}

	req, err := in.ToRequest()
	if err != nil {
		writeErrorBody(cmd, err)
		return err
	}

	engine, err := scoring.NewEngine()
	if err != nil {
		return err
	}

	assessment, err := engine.Evaluate(req)
	if err != nil {
		writeErrorBody(cmd, err)
		return err
	}

	out := struct {
		Request domain.AssessmentRequest `json:"request"`
		domain.Assessment
		RiskLevelLabel      string   `json:"riskLevelLabel"`
		RecommendationLabel string   `json:"recommendationLabel"`
		KeyFactors          []string `json:"keyFactors"`
	}{
		Request:             req,
		Assessment:          assessment,
		RiskLevelLabel:      assessment.RiskLevel.Label(),
		RecommendationLabel: assessment.Recommendation.Label(),
		KeyFactors:          assessment.KeyFactors(),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func writeErrorBody(cmd *cobra.Command, err error) {
	body, _ := json.MarshalIndent(domain.NewErrorBody(err), "", "  ")
	fmt.Fprintln(cmd.ErrOrStderr(), string(body))
}

// input builds the application from --file, or else from the flags that
// were set. Unset flags stay nil and are reported as required.
func (o *assessOptions) input(changed func(name string) bool) (domain.AssessmentInput, error) {
	var in domain.AssessmentInput
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return in, fmt.Errorf("failed to read application: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("failed to parse application: %w", err)
		}
		return in, nil
	}

	if changed("company") {
		in.CompanyName = &o.company
	}
	if changed("revenue") {
		in.AnnualRevenue = &o.revenue
	}
	if changed("loan") {
		in.LoanAmount = &o.loan
	}
	if changed("term") {
		in.LoanTermMonths = &o.term
	}
	if changed("industry") {
		in.Industry = &o.industry
	}
	if changed("age") {
		in.BusinessAgeYears = &o.age
	}
	if changed("credit-score") {
		in.CreditScore = &o.creditScore
	}
	return in, nil
}
