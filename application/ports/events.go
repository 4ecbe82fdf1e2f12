package ports

import "context"

// ChangeEvent describes records of one user that were modified by an operation.
type ChangeEvent struct {
	UserID    string
	Operation string
	Timestamp int64
	Visits    int
	Brands    int
}

// EventPublisher announces record changes to interested consumers.
type EventPublisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// PublishChange implements EventPublisher.
func (NoopPublisher) PublishChange(context.Context, ChangeEvent) error { return nil }
