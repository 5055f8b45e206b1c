package credit

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/opensource-finance/heron/internal/domain"
)

// Bureau provider IDs.
const (
	ProviderJingdong = "jingdong"
	ProviderQichacha = "qichacha"
	ProviderAPISpace = "apispace"
)

// maxResponseBytes bounds bureau response bodies.
const maxResponseBytes = 1 << 20

// HTTPProvider queries a bureau over HTTP.
type HTTPProvider struct {
	cfg        domain.CreditProviderConfig
	client     *http.Client
	retries    uint64
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// NewHTTPProvider creates a provider for one of the known bureaus.
func NewHTTPProvider(cfg domain.CreditProviderConfig, client *http.Client) (*HTTPProvider, error) {
	switch cfg.ID {
	case ProviderJingdong, ProviderQichacha, ProviderAPISpace:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.ID)
	}
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{
		cfg:     cfg,
		client:  client,
		retries: 2,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return b
		},
		now: time.Now,
	}, nil
}

// ID implements Provider.
func (p *HTTPProvider) ID() string { return p.cfg.ID }

// Enabled reports whether an API key is configured.
func (p *HTTPProvider) Enabled() bool { return p.cfg.APIKey != "" }

// Query implements Provider. Network errors and 5xx responses are retried
// with exponential backoff.
func (p *HTTPProvider) Query(ctx context.Context, companyName string) (*domain.CreditReport, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, p.cfg.ID)
	}

	var report *domain.CreditReport
	op := func() error {
		req, err := p.newRequest(ctx, companyName)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := p.do(req)
		if err != nil {
			return err
		}
		report = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%s query failed: %w", p.cfg.ID, err)
	}

	report.CompanyName = companyName
	report.Provider = p.cfg.ID
	report.Source = p.cfg.Name
	report.QueriedAt = p.now().UTC()
	if report.Tier == "" {
		report.Tier = Tier(report.Score)
	}
	return report, nil
}

func (p *HTTPProvider) newRequest(ctx context.Context, companyName string) (*http.Request, error) {
	timespan := strconv.FormatInt(p.now().Unix(), 10)

	switch p.cfg.ID {
	case ProviderJingdong:
		params := map[string]string{
			"companyName": companyName,
			"appkey":      p.cfg.APIKey,
			"timestamp":   timespan,
		}
		secret := p.cfg.Secret
		if secret == "" {
			secret = p.cfg.APIKey
		}
		params["sign"] = sign(params, secret)

		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+q.Encode(), nil)

	case ProviderQichacha:
		req, err := jsonRequest(ctx, p.cfg.BaseURL, map[string]string{"keyword": companyName})
		if err != nil {
			return nil, err
		}
		req.Header.Set("Token", p.cfg.APIKey)
		req.Header.Set("Timespan", timespan)
		return req, nil

	default:
		req, err := jsonRequest(ctx, p.cfg.BaseURL, map[string]string{"company_name": companyName})
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-APISpace-Token", p.cfg.APIKey)
		req.Header.Set("Authorization-Type", "apikey")
		return req, nil
	}
}

func jsonRequest(ctx context.Context, target string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// sign computes the md5 request signature of secret&k1=v1&k2=v2 over sorted keys.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := md5.Sum([]byte(secret + "&" + strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

func (p *HTTPProvider) do(req *http.Request) (*domain.CreditReport, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("bureau returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("bureau returned %d", resp.StatusCode))
	}

	report, err := p.decode(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if report.Score < domain.CreditScoreMin || report.Score > domain.CreditScoreMax {
		return nil, backoff.Permanent(fmt.Errorf("%w: score %d", ErrInvalidReport, report.Score))
	}
	return report, nil
}

func (p *HTTPProvider) decode(body []byte) (*domain.CreditReport, error) {
	switch p.cfg.ID {
	case ProviderJingdong:
		var resp struct {
			Code   string `json:"code"`
			Msg    string `json:"msg"`
			Result struct {
				CreditScore int    `json:"creditScore"`
				CreditLevel string `json:"creditLevel"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		if resp.Code != "10000" {
			return nil, fmt.Errorf("%w: code %s: %s", ErrBureau, resp.Code, resp.Msg)
		}
		return &domain.CreditReport{Score: resp.Result.CreditScore, Tier: resp.Result.CreditLevel}, nil

	case ProviderQichacha:
		var resp struct {
			Status  string `json:"Status"`
			Message string `json:"Message"`
			Result  struct {
				CreditScore int    `json:"CreditScore"`
				CreditLevel string `json:"CreditLevel"`
			} `json:"Result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		if resp.Status != "200" {
			return nil, fmt.Errorf("%w: status %s: %s", ErrBureau, resp.Status, resp.Message)
		}
		return &domain.CreditReport{Score: resp.Result.CreditScore, Tier: resp.Result.CreditLevel}, nil

	default:
		var resp struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    struct {
				CreditScore int    `json:"credit_score"`
				CreditLevel string `json:"credit_level"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		if resp.Code != http.StatusOK {
			return nil, fmt.Errorf("%w: code %d: %s", ErrBureau, resp.Code, resp.Message)
		}
		return &domain.CreditReport{Score: resp.Data.CreditScore, Tier: resp.Data.CreditLevel}, nil
	}
}
