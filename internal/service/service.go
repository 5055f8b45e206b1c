// Package service runs the assessment pipeline shared by the HTTP API and
// the async worker: scoring, velocity, screening rules, persistence and events.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/opensource-finance/heron/internal/telemetry"
	"github.com/opensource-finance/heron/internal/velocity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchWorkers bounds batch concurrency when Config.BatchWorkers is unset.
const DefaultBatchWorkers = 8

// ErrNoBus is returned by Submit when no event bus is configured.
var ErrNoBus = errors.New("event bus not available")

// Config wires the pipeline collaborators. Everything except Engine is optional.
type Config struct {
	Engine       *scoring.Engine
	Rules        *rules.Engine
	Velocity     *velocity.Service
	Repo         domain.Repository
	Bus          domain.EventBus
	Metrics      *telemetry.Metrics
	BatchWorkers int
	Version      string
}

// Service runs assessments end to end.
type Service struct {
	engine       *scoring.Engine
	rules        *rules.Engine
	velocity     *velocity.Service
	repo         domain.Repository
	bus          domain.EventBus
	metrics      *telemetry.Metrics
	batchWorkers int
	version      string
}

// New creates the pipeline.
func New(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("%w: scoring engine is required", domain.ErrInvalidInput)
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = DefaultBatchWorkers
	}
	return &Service{
		engine:       cfg.Engine,
		rules:        cfg.Rules,
		velocity:     cfg.Velocity,
		repo:         cfg.Repo,
		bus:          cfg.Bus,
		metrics:      cfg.Metrics,
		batchWorkers: cfg.BatchWorkers,
		version:      cfg.Version,
	}, nil
}

// Tables returns the banding tables the engine scores with.
func (s *Service) Tables() *scoring.TableSet {
	return s.engine.Tables()
}

// Assess scores req under a new assessment ID.
func (s *Service) Assess(ctx context.Context, tenantID string, req domain.AssessmentRequest) (*domain.AssessmentRecord, error) {
	return s.AssessWithID(ctx, tenantID, uuid.New().String(), req)
}

// AssessWithID scores req and stores the record under id.
//
// On a scoring error the returned record has status failed and carries the
// client error envelope; the error is a *domain.ValidationError or a
// *domain.TableCoverageError. Velocity, rule, storage and publish failures
// are logged and never fail the assessment.
func (s *Service) AssessWithID(ctx context.Context, tenantID, id string, req domain.AssessmentRequest) (*domain.AssessmentRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	ctx, span := otel.Tracer("heron-service").Start(ctx, "assessment")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("assessment.id", id),
	)

	start := time.Now()
	rec := &domain.AssessmentRecord{
		ID:        id,
		TenantID:  tenantID,
		Request:   req,
		CreatedAt: start.UTC(),
		Metadata: domain.RecordMetadata{
			TraceID:       telemetry.TraceID(ctx),
			EngineVersion: s.version,
		},
	}

	assessment, err := s.engine.Evaluate(req)
	rec.Metadata.ScoringMicros = time.Since(start).Microseconds()
	if err != nil {
		s.logFailure(tenantID, id, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring failed")

		rec.Status = domain.RecordFailed
		rec.Error = domain.NewErrorBody(err)
		rec.Metadata.TotalMs = time.Since(start).Milliseconds()
		s.save(ctx, tenantID, rec)
		s.publish(ctx, rec)
		s.metrics.RecordAssessment(ctx, rec.Status, "", time.Since(start))
		return rec, err
	}

	rec.Status = domain.RecordCompleted
	rec.Assessment = &assessment
	span.SetAttributes(
		attribute.Int("assessment.total_score", assessment.TotalScore),
		attribute.String("assessment.risk_level", string(assessment.RiskLevel)),
	)

	rec.Metadata.RecentApplications = s.recentApplications(ctx, tenantID, req.CompanyName)
	rec.Advisories = s.screen(ctx, tenantID, rec)
	rec.Metadata.RulesEvaluated = len(rec.Advisories)
	rec.Metadata.TotalMs = time.Since(start).Milliseconds()

	s.save(ctx, tenantID, rec)
	s.publish(ctx, rec)
	s.metrics.RecordAssessment(ctx, rec.Status, assessment.RiskLevel, time.Since(start))

	slog.Debug("assessment completed",
		"assessment_id", id,
		"tenant_id", tenantID,
		"total_score", assessment.TotalScore,
		"risk_level", assessment.RiskLevel,
		"advisories", len(rec.Advisories),
	)

	return rec, nil
}

func (s *Service) logFailure(tenantID, id string, err error) {
	var cov *domain.TableCoverageError
	if errors.As(err, &cov) {
		slog.Error("banding table coverage failure",
			"assessment_id", id,
			"tenant_id", tenantID,
			"factor", cov.Factor,
			"value", cov.Value,
		)
		return
	}
	slog.Info("assessment rejected",
		"assessment_id", id,
		"tenant_id", tenantID,
		"error", err,
	)
}

func (s *Service) recentApplications(ctx context.Context, tenantID, companyName string) int64 {
	if s.velocity == nil {
		return 0
	}
	count, err := s.velocity.CountRecentApplications(ctx, tenantID, companyName)
	if err != nil {
		slog.Warn("velocity lookup failed", "tenant_id", tenantID, "error", err)
		return 0
	}
	return count
}

func (s *Service) screen(ctx context.Context, tenantID string, rec *domain.AssessmentRecord) []domain.RuleResult {
	if s.rules == nil || s.rules.RulesCount() == 0 {
		return nil
	}
	results, err := s.rules.EvaluateAll(ctx, &rules.EvaluateInput{
		TenantID:           tenantID,
		AssessmentID:       rec.ID,
		Request:            rec.Request,
		Assessment:         *rec.Assessment,
		RecentApplications: rec.Metadata.RecentApplications,
	})
	if err != nil {
		slog.Warn("screening rules failed", "assessment_id", rec.ID, "error", err)
	}
	return results
}

func (s *Service) save(ctx context.Context, tenantID string, rec *domain.AssessmentRecord) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveAssessment(ctx, tenantID, rec); err != nil {
		slog.Error("failed to save assessment",
			"assessment_id", rec.ID,
			"tenant_id", tenantID,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, rec *domain.AssessmentRecord) {
	if s.bus == nil {
		return
	}

	msg := domain.CompletionMessage{
		AssessmentID: rec.ID,
		TenantID:     rec.TenantID,
		Status:       rec.Status,
	}
	if a := rec.Assessment; a != nil {
		msg.TotalScore = a.TotalScore
		msg.RiskLevel = a.RiskLevel
		msg.Recommendation = a.Recommendation
	}
	for _, adv := range rec.Advisories {
		if adv.Flagged() {
			msg.Flagged++
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode completion", "assessment_id", rec.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, rec.TenantID, domain.TopicAssessmentCompleted, payload); err != nil {
		slog.Error("failed to publish completion",
			"assessment_id", rec.ID,
			"tenant_id", rec.TenantID,
			"error", err,
		)
	}
}

// BatchItem is the outcome of one application in a batch.
type BatchItem struct {
	Index  int
	Record *domain.AssessmentRecord
	Err    error
}

// AssessBatch scores reqs on a bounded pool. Items keep the input order and
// fail independently. Items not started before ctx is done carry ctx.Err().
func (s *Service) AssessBatch(ctx context.Context, tenantID string, reqs []domain.AssessmentRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)

	for i, req := range reqs {
		i, req := i, req
		items[i].Index = i
		if gctx.Err() != nil {
			items[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Record, items[i].Err = s.Assess(gctx, tenantID, req)
			return nil
		})
	}
	g.Wait()

	return items
}

// Submit validates req and queues it for the async worker.
// It returns the ID the assessment will be stored under.
func (s *Service) Submit(ctx context.Context, tenantID string, req domain.AssessmentRequest) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.bus == nil {
		return "", ErrNoBus
	}

	msg := domain.SubmissionMessage{
		AssessmentID: uuid.New().String(),
		TenantID:     tenantID,
		TraceID:      telemetry.TraceID(ctx),
		Request:      req,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}
	if err := s.bus.Publish(ctx, tenantID, domain.TopicAssessmentRequested, payload); err != nil {
		return "", fmt.Errorf("failed to publish submission: %w", err)
	}
	return msg.AssessmentID, nil
}
