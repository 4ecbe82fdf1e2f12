package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noctisdark/mazenrecords-sst/application/batch"
	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/application/services"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/config"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/messaging/eventbridge"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/codec"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/dynamodb"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/memory"
	"github.com/noctisdark/mazenrecords-sst/interfaces/http/rest"
	"github.com/noctisdark/mazenrecords-sst/pkg/auth"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
)

const serviceName = "mazenrecords"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build(zap.Fields(zap.String("service", serviceName)))
}

// ProvideMetrics creates the metrics collector, or nil when metrics are off
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(serviceName)
}

// ProvideTracer creates the tracer, or nil when tracing is off
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer(serviceName)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableTracing {
		observability.InstrumentAWS(&awsCfg)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client, behind a circuit breaker
// when one is configured. The SDK retryer is disabled: dynamodb.Store owns
// retries so every attempt passes through the breaker exactly once.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config, logger *zap.Logger) dynamodb.DBClient {
	var client dynamodb.DBClient = awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	if !cfg.Breaker.Enabled {
		return client
	}

	breaker := dynamodb.DefaultBreakerConfig()
	breaker.FailureThreshold = cfg.Breaker.FailureRatio
	breaker.MinRequests = cfg.Breaker.MinRequests
	breaker.Timeout = cfg.Breaker.OpenTimeout
	return dynamodb.NewBreakerClient(client, breaker, logger)
}

// ProvideRecordStore creates the record store selected by configuration
func ProvideRecordStore(
	awsCfg aws.Config,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) ports.RecordStore {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("Using in-memory record store; data is lost on restart")
		return memory.NewStore(memory.WithLogger(logger))
	}

	retry := dynamodb.DefaultRetryConfig()
	retry.MaxRetries = cfg.Retry.MaxRetries
	retry.InitialDelay = cfg.Retry.InitialDelay
	retry.MaxDelay = cfg.Retry.MaxDelay

	return dynamodb.NewStore(
		ProvideDynamoDBClient(awsCfg, cfg, logger),
		dynamodb.StoreConfig{
			TableName:    cfg.TableName,
			UpdatesIndex: cfg.UpdatesIndex,
			Retry:        retry,
		},
		logger,
		metrics,
	)
}

// ProvideEventPublisher creates the change publisher. Without an event bus
// changes are not announced.
func ProvideEventPublisher(
	awsCfg aws.Config,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return ports.NoopPublisher{}
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger, metrics)
}

// ProvideBatchWriter creates the chunked transactional writer
func ProvideBatchWriter(store ports.RecordStore, logger *zap.Logger, metrics *observability.Collector) *batch.Writer {
	return batch.NewWriter(store, batch.MaxBatchSize, logger, metrics)
}

// ProvideVisitService creates the visit service
func ProvideVisitService(store ports.RecordStore, publisher ports.EventPublisher, logger *zap.Logger) *services.EntityService[entities.Visit] {
	return services.NewEntityService[entities.Visit](store, codec.Visits, publisher, logger)
}

// ProvideBrandService creates the brand service
func ProvideBrandService(store ports.RecordStore, publisher ports.EventPublisher, logger *zap.Logger) *services.EntityService[entities.Brand] {
	return services.NewEntityService[entities.Brand](store, codec.Brands, publisher, logger)
}

// ProvideSyncService creates the sync service
func ProvideSyncService(
	store ports.RecordStore,
	writer *batch.Writer,
	publisher ports.EventPublisher,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *services.SyncService {
	return services.NewSyncService(store, writer, codec.Visits, codec.Brands, publisher, tracer, logger)
}

// ProvideJWTValidator creates the bearer token validator. It is nil when no
// secret is configured, which only Lambda deployments can run with.
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	visits *services.EntityService[entities.Visit],
	brands *services.EntityService[entities.Brand],
	sync *services.SyncService,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(visits, brands, sync, validator, metrics, rest.Options{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		Debug:          cfg.IsDevelopment(),
	}, logger)
}
