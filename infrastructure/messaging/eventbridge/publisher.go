// Package eventbridge announces record changes on an EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
	"github.com/noctisdark/mazenrecords-sst/pkg/utils"
)

const (
	// Source identifies events emitted by this service.
	Source = "mazenrecords.api"
	// DetailTypeRecordsChanged is the detail type of every change event.
	DetailTypeRecordsChanged = "RecordsChanged"
)

// Client is the subset of the EventBridge API the publisher needs
type Client interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ Client = (*eventbridge.Client)(nil)

// Publisher implements ports.EventPublisher using AWS EventBridge
type Publisher struct {
	client       Client
	eventBusName string
	logger       *zap.Logger
	metrics      *observability.Collector
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client Client, eventBusName string, logger *zap.Logger, metrics *observability.Collector) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		metrics:      metrics,
	}
}

type changeDetail struct {
	EventID   string `json:"eventId"`
	UserID    string `json:"userId"`
	Operation string `json:"operation"`
	Timestamp int64  `json:"timestamp"`
	Visits    int    `json:"visits"`
	Brands    int    `json:"brands"`
}

// PublishChange implements ports.EventPublisher
func (p *Publisher) PublishChange(ctx context.Context, event ports.ChangeEvent) error {
	detail, err := json.Marshal(changeDetail{
		EventID:   uuid.NewString(),
		UserID:    event.UserID,
		Operation: event.Operation,
		Timestamp: event.Timestamp,
		Visits:    event.Visits,
		Brands:    event.Brands,
	})
	if err != nil {
		p.metrics.RecordChangeEvent(observability.StatusError)
		return fmt.Errorf("marshal change event: %w", err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(DetailTypeRecordsChanged),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(utils.FromMillis(event.Timestamp)),
		}},
	})
	if err != nil {
		p.metrics.RecordChangeEvent(observability.StatusError)
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Failed to publish change event",
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		p.metrics.RecordChangeEvent(observability.StatusError)
		return fmt.Errorf("%d change events failed to publish", result.FailedEntryCount)
	}

	p.metrics.RecordChangeEvent(observability.StatusSuccess)
	p.logger.Debug("Change event published",
		zap.String("eventBus", p.eventBusName),
		zap.String("operation", event.Operation),
	)
	return nil
}

var _ ports.EventPublisher = (*Publisher)(nil)
