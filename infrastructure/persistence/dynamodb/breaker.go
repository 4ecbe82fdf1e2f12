package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker guarding the DynamoDB client
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker policy used when none is configured
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "dynamodb",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// breakerClient fails fast while DynamoDB keeps erroring
type breakerClient struct {
	next DBClient
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client with a circuit breaker. Rejected write
// conditions and cancelled requests do not count as failures.
func NewBreakerClient(client DBClient, cfg BreakerConfig, logger *zap.Logger) DBClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				isConditionFailure(err) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &breakerClient{next: client, cb: cb}
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if out == nil {
		var zero T
		return zero, err
	}
	return out.(T), err
}

func (c *breakerClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return execute(c.cb, func() (*dynamodb.GetItemOutput, error) {
		return c.next.GetItem(ctx, params, optFns...)
	})
}

func (c *breakerClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return execute(c.cb, func() (*dynamodb.PutItemOutput, error) {
		return c.next.PutItem(ctx, params, optFns...)
	})
}

func (c *breakerClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return execute(c.cb, func() (*dynamodb.QueryOutput, error) {
		return c.next.Query(ctx, params, optFns...)
	})
}

func (c *breakerClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return execute(c.cb, func() (*dynamodb.TransactWriteItemsOutput, error) {
		return c.next.TransactWriteItems(ctx, params, optFns...)
	})
}
