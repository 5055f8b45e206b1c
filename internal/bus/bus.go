// Package bus carries assessment submissions and completions between the
// API, the async worker and downstream consumers.
package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	errNoTenant = errors.New("tenantID is required")
	errClosed   = errors.New("bus is closed")
)

// New creates the event bus named by cfg.Type.
// "channel" (or empty) is the in-process Community bus, "nats" the Pro bus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch strings.ToLower(cfg.Type) {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage wraps payload in an envelope stamped with the caller's trace.
func newMessage(ctx context.Context, tenantID, topic string, payload []byte) *domain.Message {
	md := make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(md))
	return &domain.Message{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  md,
		Timestamp: time.Now().UnixNano(),
	}
}

// handlerContext restores the publisher's trace onto the subscriber's context.
func handlerContext(ctx context.Context, msg *domain.Message) context.Context {
	if len(msg.Metadata) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
}
