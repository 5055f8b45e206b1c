package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the bus envelope. Metadata carries W3C trace context so a
// queued assessment joins the trace of the request that submitted it.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type" yaml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"-" yaml:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds

	// NATSQueueGroup load-balances submissions across Heron instances.
	// Completion events always fan out to every subscriber.
	NATSQueueGroup string `json:"natsQueueGroup" yaml:"natsQueueGroup"`
}

// Topic names for the assessment pipeline.
const (
	TopicAssessmentRequested = "heron.assessment.requested"
	TopicAssessmentCompleted = "heron.assessment.completed"
)

// SubmissionMessage is the payload of TopicAssessmentRequested.
type SubmissionMessage struct {
	AssessmentID string            `json:"assessmentId"`
	TenantID     string            `json:"tenantId"`
	TraceID      string            `json:"traceId,omitempty"`
	Request      AssessmentRequest `json:"request"`
}

// CompletionMessage is the payload of TopicAssessmentCompleted.
type CompletionMessage struct {
	AssessmentID   string         `json:"assessmentId"`
	TenantID       string         `json:"tenantId"`
	Status         string         `json:"status"`
	TotalScore     int            `json:"totalScore,omitempty"`
	RiskLevel      RiskLevel      `json:"riskLevel,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Flagged        int            `json:"flagged"`
}
