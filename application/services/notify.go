package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
)

// notify publishes a change event. Delivery is best effort: the write it
// reports has already happened, so a failure is only logged.
func notify(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, event ports.ChangeEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishChange(ctx, event); err != nil {
		logger.Warn("failed to publish change event",
			zap.String("operation", event.Operation),
			zap.String("userId", event.UserID),
			zap.Error(err),
		)
	}
}

func lower(kind entities.Kind) string {
	return strings.ToLower(string(kind))
}
