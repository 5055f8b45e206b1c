// Package velocity counts recent loan applications per company.
package velocity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// DefaultWindow is the look-back used when none is configured.
const DefaultWindow = 30 * 24 * time.Hour

// Service calculates application velocity for companies.
type Service struct {
	repo   domain.Repository
	window time.Duration
	now    func() time.Time
}

// NewService creates a new velocity service. A non-positive window uses DefaultWindow.
func NewService(repo domain.Repository, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		repo:   repo,
		window: window,
		now:    time.Now,
	}
}

// Window returns the look-back window.
func (s *Service) Window() time.Duration {
	return s.window
}

// CountRecentApplications returns the number of completed assessments for a
// company within the window. The current application is not yet stored and
// therefore not counted.
func (s *Service) CountRecentApplications(ctx context.Context, tenantID, companyName string) (int64, error) {
	if tenantID == "" || strings.TrimSpace(companyName) == "" {
		return 0, fmt.Errorf("%w: tenantID and companyName are required", domain.ErrInvalidInput)
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := s.now().Add(-s.window)
	count, err := s.repo.CountAssessmentsByCompany(ctx, tenantID, companyName, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}
