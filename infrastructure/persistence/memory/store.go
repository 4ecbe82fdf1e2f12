// Package memory provides an in-process RecordStore used for local
// development and tests. It honours the same write conditions, index
// ordering and transaction limits as the DynamoDB store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
)

// ErrInjected is the default error returned by an injected transaction failure.
var ErrInjected = errors.New("injected transaction failure")

// Store keeps records in nested maps keyed by user and sort key.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]ports.Record
	logger  *zap.Logger

	pageSize int

	transactCalls int
	failOnCall    int
	failErr       error

	queryPages int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize makes queries read results in pages of n records.
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]map[string]ports.Record),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailTransactOnCall makes the n-th TransactPut call (1-based, counted from
// now) fail with err without writing anything. A nil err uses ErrInjected.
func (s *Store) FailTransactOnCall(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.transactCalls = 0
	s.failOnCall = n
	s.failErr = err
}

// QueryPages returns how many result pages have been read so far.
func (s *Store) QueryPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPages
}

// Get implements ports.RecordStore.
func (s *Store) Get(ctx context.Context, userID, sortKey string) (ports.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID][sortKey]
	if !ok {
		return nil, false, nil
	}
	return copyRecord(rec), true, nil
}

// Put implements ports.RecordStore.
func (s *Store) Put(ctx context.Context, rec ports.Record, cond ports.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	userID, sortKey, err := keyOf(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[userID][sortKey]
	if !conditionHolds(cond, existing, exists) {
		s.logger.Debug("conditional put rejected",
			zap.String("sortKey", sortKey),
			zap.Stringer("condition", cond),
		)
		return fmt.Errorf("put %s: %w", sortKey, ports.ErrConditionFailed)
	}

	s.put(userID, sortKey, rec)
	return nil
}

// Query implements ports.RecordStore. Results are read page by page, each
// page starting after the last key of the previous one.
func (s *Store) Query(ctx context.Context, q ports.Query) ([]ports.Record, error) {
	var (
		out   []ports.Record
		start *pageKey
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, last, err := s.queryPage(q, start)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if last == nil {
			return out, nil
		}
		start = last
	}
}

// pageKey is the position of a record in query order.
type pageKey struct {
	sortKey   string
	updatedAt int64
}

// before reports whether k sorts ahead of o. Base table order is by sort
// key, the updates index orders by updatedAt.
func (k pageKey) before(o pageKey, byUpdatedAt bool) bool {
	if byUpdatedAt && k.updatedAt != o.updatedAt {
		return k.updatedAt < o.updatedAt
	}
	return k.sortKey < o.sortKey
}

// queryPage reads at most pageSize records after start. last is the key of
// the final record returned, or nil when no records remain.
func (s *Store) queryPage(q ports.Query, start *pageKey) (page []ports.Record, last *pageKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryPages++

	type match struct {
		key pageKey
		rec ports.Record
	}

	byUpdatedAt := q.UpdatedAfter != nil
	var matches []match
	for sortKey, rec := range s.records[q.UserID] {
		if !strings.HasPrefix(sortKey, q.SortKeyPrefix) {
			continue
		}
		updatedAt, err := updatedAtOf(rec)
		if err != nil {
			return nil, nil, err
		}
		if byUpdatedAt && updatedAt <= *q.UpdatedAfter {
			continue
		}
		key := pageKey{sortKey: sortKey, updatedAt: updatedAt}
		if start != nil && !start.before(key, byUpdatedAt) {
			continue
		}
		matches = append(matches, match{key: key, rec: rec})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key.before(matches[j].key, byUpdatedAt)
	})

	if s.pageSize > 0 && len(matches) > s.pageSize {
		matches = matches[:s.pageSize]
		last = &matches[len(matches)-1].key
	}

	page = make([]ports.Record, 0, len(matches))
	for _, m := range matches {
		page = append(page, project(m.rec, q.Projection))
	}
	return page, last, nil
}

// TransactPut implements ports.RecordStore.
func (s *Store) TransactPut(ctx context.Context, recs []ports.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if len(recs) > ports.MaxTransactItems {
		return fmt.Errorf("transaction of %d records exceeds limit of %d", len(recs), ports.MaxTransactItems)
	}

	type key struct{ userID, sortKey string }
	keys := make([]key, 0, len(recs))
	seen := make(map[key]struct{}, len(recs))
	for _, rec := range recs {
		userID, sortKey, err := keyOf(rec)
		if err != nil {
			return err
		}
		k := key{userID, sortKey}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("transaction contains multiple operations on %s", sortKey)
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactCalls++
	if s.failOnCall > 0 && s.transactCalls == s.failOnCall {
		return s.failErr
	}

	for i, k := range keys {
		s.put(k.userID, k.sortKey, recs[i])
	}
	return nil
}

func (s *Store) put(userID, sortKey string, rec ports.Record) {
	partition, ok := s.records[userID]
	if !ok {
		partition = make(map[string]ports.Record)
		s.records[userID] = partition
	}
	partition[sortKey] = copyRecord(rec)
}

func conditionHolds(cond ports.Condition, existing ports.Record, exists bool) bool {
	switch cond {
	case ports.ConditionAbsentOrTombstone:
		if !exists {
			return true
		}
		_, deleted := existing[ports.AttrDeleted]
		return deleted
	case ports.ConditionLive:
		if !exists {
			return false
		}
		_, deleted := existing[ports.AttrDeleted]
		return !deleted
	default:
		return true
	}
}

func keyOf(rec ports.Record) (userID, sortKey string, err error) {
	u, ok := rec[ports.AttrUserID].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", errors.New("record is missing string attribute userId")
	}
	sk, ok := rec[ports.AttrSortKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", errors.New("record is missing string attribute sortKey")
	}
	return u.Value, sk.Value, nil
}

func updatedAtOf(rec ports.Record) (int64, error) {
	n, ok := rec[ports.AttrUpdatedAt].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("record is missing numeric attribute updatedAt")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func project(rec ports.Record, attrs []string) ports.Record {
	if len(attrs) == 0 {
		return copyRecord(rec)
	}
	out := make(ports.Record, len(attrs))
	for _, a := range attrs {
		if v, ok := rec[a]; ok {
			out[a] = v
		}
	}
	return out
}

func copyRecord(rec ports.Record) ports.Record {
	out := make(ports.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
