package domain

import "time"

// CreditReport is what the credit bureau adapter resolves for a company.
// The scoring engine only consumes Score, Tier and Source.
type CreditReport struct {
	CompanyName string    `json:"companyName"`
	Score       int       `json:"creditScore"`
	Tier        string    `json:"creditTier"`
	Source      string    `json:"creditSource"`
	Provider    string    `json:"provider"`
	IsMock      bool      `json:"isMock"`
	QueriedAt   time.Time `json:"queryTime"`
}

// ProviderUsage reports free-quota consumption of one bureau provider.
type ProviderUsage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Used      int64     `json:"used"`
	Quota     int64     `json:"quota"`
	Remaining int64     `json:"remaining"`
	LastReset time.Time `json:"lastReset"`
}
