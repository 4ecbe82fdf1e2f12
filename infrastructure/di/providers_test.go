package di

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/config"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/messaging/eventbridge"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/dynamodb"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/memory"
)

func TestProvideLogger(t *testing.T) {
	// Arrange
	cfg := config.Defaults()
	cfg.LogLevel = "loud"

	// Act
	_, err := ProvideLogger(cfg)

	// Assert
	assert.Error(t, err)

	cfg.LogLevel = "debug"
	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestProvideRecordStore(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	awsCfg := aws.Config{Region: "us-east-1"}

	memCfg := config.Defaults()
	memCfg.StoreBackend = config.StoreMemory
	dynCfg := config.Defaults()

	// Act
	memStore := ProvideRecordStore(awsCfg, memCfg, logger, nil)
	dynStore := ProvideRecordStore(awsCfg, dynCfg, logger, nil)

	// Assert
	assert.IsType(t, &memory.Store{}, memStore)
	assert.IsType(t, &dynamodb.Store{}, dynStore)
}

func TestProvideDynamoDBClient(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	awsCfg := aws.Config{Region: "us-east-1"}
	cfg := config.Defaults()
	cfg.Breaker.Enabled = false

	// Act
	plain := ProvideDynamoDBClient(awsCfg, cfg, logger)
	cfg.Breaker.Enabled = true
	guarded := ProvideDynamoDBClient(awsCfg, cfg, logger)

	// Assert
	client, ok := plain.(*awsdynamodb.Client)
	require.True(t, ok)
	assert.IsType(t, aws.NopRetryer{}, client.Options().Retryer)
	_, raw := guarded.(*awsdynamodb.Client)
	assert.False(t, raw)
}

func TestProvideEventPublisher(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	awsCfg := aws.Config{Region: "us-east-1"}
	cfg := config.Defaults()

	// Act
	noop := ProvideEventPublisher(awsCfg, cfg, logger, nil)
	cfg.EventBusName = "records"
	bus := ProvideEventPublisher(awsCfg, cfg, logger, nil)

	// Assert
	assert.Equal(t, ports.NoopPublisher{}, noop)
	assert.IsType(t, &eventbridge.Publisher{}, bus)
}

func TestProvideJWTValidator(t *testing.T) {
	// Arrange
	cfg := config.Defaults()

	// Act
	none, err := ProvideJWTValidator(cfg)
	require.NoError(t, err)
	cfg.JWTSecret = "secret"
	validator, err := ProvideJWTValidator(cfg)

	// Assert
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NotNil(t, validator)
}

func TestProvideMetricsAndTracer(t *testing.T) {
	cfg := config.Defaults()
	cfg.EnableMetrics = false
	cfg.EnableTracing = false
	assert.Nil(t, ProvideMetrics(cfg))
	assert.Nil(t, ProvideTracer(cfg))

	cfg.EnableMetrics = true
	cfg.EnableTracing = true
	assert.NotNil(t, ProvideMetrics(cfg))
	assert.NotNil(t, ProvideTracer(cfg))
}
