// Package worker scores queued assessment submissions from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// Assessor runs one assessment under a caller-chosen ID.
type Assessor interface {
	AssessWithID(ctx context.Context, tenantID, id string, req domain.AssessmentRequest) (*domain.AssessmentRecord, error)
}

// Worker processes submissions asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	assessor Assessor

	sem           chan struct{}
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	mu            sync.Mutex
	stopped       bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard)
	TenantIDs []string

	// Concurrency bounds in-flight assessments across all subscriptions
	Concurrency int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, assessor Assessor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		assessor: assessor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	w.sem = make(chan struct{}, cfg.Concurrency)

	if len(cfg.TenantIDs) == 0 {
		return w.subscribe(domain.GlobalTenantID)
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.subscribe(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
		"concurrency", cfg.Concurrency,
	)

	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAssessmentRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker subscribed",
		"tenant_id", tenantID,
		"topic", domain.TopicAssessmentRequested,
	)
	return nil
}

// handleMessage decodes a submission and hands it to the pool.
// It blocks while the pool is full so the bus applies backpressure.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var sub domain.SubmissionMessage
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		slog.Error("failed to parse submission",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if sub.TenantID == "" {
		sub.TenantID = msg.TenantID
	}
	if sub.AssessmentID == "" {
		sub.AssessmentID = msg.ID
	}

	select {
	case w.sem <- struct{}{}:
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.process(sub)
	}()
	return nil
}

func (w *Worker) process(sub domain.SubmissionMessage) {
	start := time.Now()

	rec, err := w.assessor.AssessWithID(w.ctx, sub.TenantID, sub.AssessmentID, sub.Request)
	if err != nil {
		var verr *domain.ValidationError
		level := slog.LevelError
		if errors.As(err, &verr) {
			level = slog.LevelWarn
		}
		slog.Log(w.ctx, level, "queued assessment failed",
			"assessment_id", sub.AssessmentID,
			"tenant_id", sub.TenantID,
			"trace_id", sub.TraceID,
			"error", err,
		)
		return
	}

	slog.Info("queued assessment processed",
		"assessment_id", rec.ID,
		"tenant_id", rec.TenantID,
		"trace_id", sub.TraceID,
		"risk_level", rec.Assessment.RiskLevel,
		"total_score", rec.Assessment.TotalScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop unsubscribes and waits for in-flight assessments.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.sem),
	}
}
