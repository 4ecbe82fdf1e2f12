package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// StoreConfig holds everything the store needs to address the records table
type StoreConfig struct {
	TableName    string
	UpdatesIndex string
	Retry        RetryConfig
}

// Store implements ports.RecordStore on a single DynamoDB table keyed by
// (userId, sortKey) with a local secondary index on updatedAt.
type Store struct {
	client  DBClient
	cfg     StoreConfig
	logger  *zap.Logger
	metrics *observability.Collector
}

var _ ports.RecordStore = (*Store)(nil)

// NewStore creates a store. metrics may be nil.
func NewStore(client DBClient, cfg StoreConfig, logger *zap.Logger, metrics *observability.Collector) *Store {
	if cfg.UpdatesIndex == "" {
		cfg.UpdatesIndex = "updates_lsi"
	}
	return &Store{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// ============================================================================
// SINGLE RECORD OPERATIONS
// ============================================================================

// Get fetches one record by key.
func (s *Store) Get(ctx context.Context, userID, sortKey string) (ports.Record, bool, error) {
	var out *dynamodb.GetItemOutput
	err := s.observe(ctx, "get", func() error {
		var err error
		out, err = s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.cfg.TableName),
			Key:       key(userID, sortKey),
		})
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", sortKey, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}
	return out.Item, true, nil
}

// Put writes one record guarded by cond.
func (s *Store) Put(ctx context.Context, rec ports.Record, cond ports.Condition) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.cfg.TableName),
		Item:      rec,
	}

	if c, ok := conditionFor(cond); ok {
		expr, err := expression.NewBuilder().WithCondition(c).Build()
		if err != nil {
			return fmt.Errorf("build %s condition: %w", cond, err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	err := s.observe(ctx, "put", func() error {
		_, err := s.client.PutItem(ctx, input)
		return err
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("put %s: %w", ports.SortKeyOf(rec), ports.ErrConditionFailed)
		}
		return fmt.Errorf("put %s: %w", ports.SortKeyOf(rec), err)
	}
	return nil
}

// ============================================================================
// QUERY OPERATIONS
// ============================================================================

// Query returns every record matching q. Results are read page by page
// until DynamoDB stops returning a LastEvaluatedKey.
func (s *Store) Query(ctx context.Context, q ports.Query) ([]ports.Record, error) {
	input, err := s.buildQuery(q)
	if err != nil {
		return nil, err
	}

	var (
		records []ports.Record
		pages   int
	)
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		var page *dynamodb.QueryOutput
		err := s.observe(ctx, "query", func() error {
			var err error
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("query %s page %d: %w", q.UserID, pages+1, err)
		}
		pages++
		records = append(records, page.Items...)
	}

	s.logger.Debug("query drained",
		zap.String("userId", q.UserID),
		zap.String("prefix", q.SortKeyPrefix),
		zap.Int("pages", pages),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (s *Store) buildQuery(q ports.Query) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key(ports.AttrUserID).Equal(expression.Value(q.UserID))
	builder := expression.NewBuilder()

	var indexName *string
	switch {
	case q.UpdatedAfter != nil:
		// The index sort key is updatedAt, so a prefix becomes a filter.
		indexName = aws.String(s.cfg.UpdatesIndex)
		keyCond = keyCond.And(expression.Key(ports.AttrUpdatedAt).GreaterThan(expression.Value(*q.UpdatedAfter)))
		if q.SortKeyPrefix != "" {
			builder = builder.WithFilter(expression.Name(ports.AttrSortKey).BeginsWith(q.SortKeyPrefix))
		}
	case q.SortKeyPrefix != "":
		keyCond = keyCond.And(expression.Key(ports.AttrSortKey).BeginsWith(q.SortKeyPrefix))
	}
	builder = builder.WithKeyCondition(keyCond)

	if len(q.Projection) > 0 {
		names := make([]expression.NameBuilder, 0, len(q.Projection))
		for _, attr := range q.Projection {
			names = append(names, expression.Name(attr))
		}
		builder = builder.WithProjection(expression.NamesList(names[0], names[1:]...))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(s.cfg.TableName),
		IndexName:                 indexName,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// ============================================================================
// TRANSACTION OPERATIONS
// ============================================================================

// TransactPut writes up to 25 records in one TransactWriteItems call.
func (s *Store) TransactPut(ctx context.Context, recs []ports.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if len(recs) > ports.MaxTransactItems {
		return fmt.Errorf("transaction of %d records exceeds limit of %d", len(recs), ports.MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.cfg.TableName),
				Item:      rec,
			},
		})
	}

	err := s.observe(ctx, "transact_put", func() error {
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("transact put of %d records: %w", len(recs), err)
	}
	return nil
}

// ============================================================================
// HELPER METHODS
// ============================================================================

// observe runs one backend call with retry and records its outcome.
func (s *Store) observe(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := withRetry(ctx, s.cfg.Retry, s.logger, op, fn)

	status := observability.StatusSuccess
	switch {
	case err == nil:
	case isConditionFailure(err):
		status = observability.StatusConflict
	default:
		status = observability.StatusError
		s.logger.Error("store operation failed", zap.String("operation", op), zap.Error(err))
	}
	s.metrics.RecordStoreOperation(op, status, time.Since(start))
	return err
}

func conditionFor(cond ports.Condition) (expression.ConditionBuilder, bool) {
	userID := expression.Name(ports.AttrUserID)
	sortKey := expression.Name(ports.AttrSortKey)
	deleted := expression.Name(ports.AttrDeleted)

	switch cond {
	case ports.ConditionAbsentOrTombstone:
		return expression.Or(
			expression.And(expression.AttributeNotExists(userID), expression.AttributeNotExists(sortKey)),
			expression.AttributeExists(deleted),
		), true
	case ports.ConditionLive:
		return expression.And(
			expression.AttributeExists(userID),
			expression.AttributeExists(sortKey),
			expression.AttributeNotExists(deleted),
		), true
	default:
		return expression.ConditionBuilder{}, false
	}
}

func key(userID, sortKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		ports.AttrUserID:  &types.AttributeValueMemberS{Value: userID},
		ports.AttrSortKey: &types.AttributeValueMemberS{Value: sortKey},
	}
}
