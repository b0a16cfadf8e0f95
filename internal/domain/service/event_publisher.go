package service

import (
	"context"

	"cookbook/internal/domain/entity"
)

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishSessionEvent publishes a session lifecycle event
	PublishSessionEvent(ctx context.Context, event *entity.SessionEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
