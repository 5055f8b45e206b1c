package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// Listing bounds for ListAssessments.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// CompanyKey normalizes a company name for velocity lookups.
func CompanyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SaveAssessment stores an assessment record with tenant isolation.
// Records are immutable; saving an existing ID fails.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, rec *domain.AssessmentRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	advisories, err := json.Marshal(rec.Advisories)
	if err != nil {
		return fmt.Errorf("failed to encode advisories: %w", err)
	}

	var (
		totalScore     sql.NullInt64
		riskLevel      sql.NullString
		recommendation sql.NullString
		assessment     sql.NullString
		errBody        sql.NullString
	)
	if a := rec.Assessment; a != nil {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode assessment: %w", err)
		}
		assessment = sql.NullString{String: string(data), Valid: true}
		totalScore = sql.NullInt64{Int64: int64(a.TotalScore), Valid: true}
		riskLevel = sql.NullString{String: string(a.RiskLevel), Valid: true}
		recommendation = sql.NullString{String: string(a.Recommendation), Valid: true}
	}
	if rec.Error != nil {
		data, err := json.Marshal(rec.Error)
		if err != nil {
			return fmt.Errorf("failed to encode error: %w", err)
		}
		errBody = sql.NullString{String: string(data), Valid: true}
	}

	createdAt := rec.CreatedAt.UTC()
	if rec.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, company_name, company_key, status,
			total_score, risk_level, recommendation,
			request, assessment, advisories, error, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.Request.CompanyName, CompanyKey(rec.Request.CompanyName), rec.Status,
		totalScore, riskLevel, recommendation,
		string(request), assessment, string(advisories), errBody, string(metadata), createdAt,
	)
	return err
}

const assessmentColumns = `
	id, tenant_id, status, request, assessment, advisories, error, metadata, created_at
`

// GetAssessment retrieves an assessment record by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, id string) (*domain.AssessmentRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE tenant_id = ? AND id = ?`

	rec, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListAssessments returns the most recent records of a tenant, newest first.
// A non-positive limit uses DefaultListLimit; limits above MaxListLimit are capped.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, limit int) ([]*domain.AssessmentRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.AssessmentRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountAssessmentsByCompany counts the completed records of a company created at or after since.
func (r *SQLRepository) CountAssessmentsByCompany(ctx context.Context, tenantID string, companyName string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM assessments
		WHERE tenant_id = ? AND company_key = ? AND created_at >= ? AND status = ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, CompanyKey(companyName), since.UTC(), domain.RecordCompleted).Scan(&count)
	return count, err
}

func scanAssessment(row rowScanner) (*domain.AssessmentRecord, error) {
	var rec domain.AssessmentRecord
	var request, metadata string
	var assessment, advisories, errBody sql.NullString

	if err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.Status,
		&request, &assessment, &advisories, &errBody, &metadata,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(request), &rec.Request); err != nil {
		return nil, fmt.Errorf("failed to parse request of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata of %s: %w", rec.ID, err)
	}
	if assessment.Valid {
		rec.Assessment = &domain.Assessment{}
		if err := json.Unmarshal([]byte(assessment.String), rec.Assessment); err != nil {
			return nil, fmt.Errorf("failed to parse assessment of %s: %w", rec.ID, err)
		}
	}
	if advisories.Valid && advisories.String != "" {
		if err := json.Unmarshal([]byte(advisories.String), &rec.Advisories); err != nil {
			return nil, fmt.Errorf("failed to parse advisories of %s: %w", rec.ID, err)
		}
	}
	if errBody.Valid {
		rec.Error = &domain.ErrorBody{}
		if err := json.Unmarshal([]byte(errBody.String), rec.Error); err != nil {
			return nil, fmt.Errorf("failed to parse error of %s: %w", rec.ID, err)
		}
	}

	return &rec, nil
}
