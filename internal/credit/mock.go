package credit

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// MockProviderID identifies the simulated bureau.
const MockProviderID = "mock"

// Mock score range.
const (
	MockScoreMin = 500
	MockScoreMax = 800
)

var mockSources = []string{
	"央行征信中心 (模拟)",
	"百行征信 (模拟)",
	"芝麻信用 (模拟)",
	"腾讯征信 (模拟)",
}

// MockProvider derives a stable simulated report from the company name.
type MockProvider struct {
	now func() time.Time
}

// NewMockProvider creates the simulated bureau.
func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

// ID implements Provider.
func (p *MockProvider) ID() string { return MockProviderID }

// Query implements Provider. The same name always yields the same score.
func (p *MockProvider) Query(ctx context.Context, companyName string) (*domain.CreditReport, error) {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(companyName))))
	n := binary.BigEndian.Uint64(sum[:8])
	score := MockScoreMin + int(n%uint64(MockScoreMax-MockScoreMin+1))
	source := mockSources[binary.BigEndian.Uint64(sum[8:16])%uint64(len(mockSources))]

	return &domain.CreditReport{
		CompanyName: companyName,
		Score:       score,
		Tier:        Tier(score),
		Source:      source,
		Provider:    MockProviderID,
		IsMock:      true,
		QueriedAt:   p.now().UTC(),
	}, nil
}

// Tier maps a credit score to its display tier.
func Tier(score int) string {
	switch {
	case score >= 750:
		return "优秀"
	case score >= 700:
		return "良好"
	case score >= 650:
		return "一般"
	default:
		return "较差"
	}
}
