package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"repohub/pkg/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Routing keys of the domain events.
const (
	EventUserCreated         = "user.created"
	EventUserDeleted         = "user.deleted"
	EventRepositoryCreated   = "repository.created"
	EventRepositoryUpdated   = "repository.updated"
	EventRepositoryFavorited = "repository.favorited"
)

// EventPublisher sends an encoded event under a routing key.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// Event is the envelope of every published domain event.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// publishEvent sends an event if a publisher is configured. Publishing is
// best effort: the mutation already committed, so failures are only logged.
func publishEvent(ctx context.Context, p EventPublisher, eventType string, occurredAt time.Time, data interface{}) {
	if p == nil {
		return
	}
	body, err := json.Marshal(Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: occurredAt,
		Data:       data,
	})
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Str("event", eventType).Msg("failed to encode event")
		observability.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		return
	}
	if err := p.Publish(eventType, body); err != nil {
		log.Warn().Ctx(ctx).Err(err).Str("event", eventType).Msg("failed to publish event")
		observability.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
		return
	}
	observability.EventsPublishedTotal.WithLabelValues(eventType, "published").Inc()
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
