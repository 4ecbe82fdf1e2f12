package ports

import (
	"context"
	"errors"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Record is a flat item of the records table keyed by (userId, sortKey).
type Record = map[string]types.AttributeValue

// Attribute names shared by every record.
const (
	AttrUserID    = "userId"
	AttrSortKey   = "sortKey"
	AttrUpdatedAt = "updatedAt"
	AttrDeleted   = "deleted"
)

// ErrConditionFailed is returned by RecordStore.Put when the write
// condition does not hold for the current item.
var ErrConditionFailed = errors.New("conditional check failed")

// Condition guards a single-record write.
type Condition int

const (
	// ConditionNone overwrites unconditionally.
	ConditionNone Condition = iota
	// ConditionAbsentOrTombstone requires that no record exists for the key
	// or that the existing record is a tombstone.
	ConditionAbsentOrTombstone
	// ConditionLive requires an existing record that is not a tombstone.
	ConditionLive
)

func (c Condition) String() string {
	switch c {
	case ConditionAbsentOrTombstone:
		return "absent_or_tombstone"
	case ConditionLive:
		return "live"
	default:
		return "none"
	}
}

// Query selects records in one user partition.
type Query struct {
	UserID string
	// SortKeyPrefix restricts results to sort keys starting with it.
	SortKeyPrefix string
	// UpdatedAfter, when set, selects records with updatedAt strictly
	// greater than the value through the updates index.
	UpdatedAfter *int64
	// Projection limits the returned attributes. Empty returns everything.
	Projection []string
}

// RecordStore is the key-value backend holding all records.
type RecordStore interface {
	// Get fetches one record. found is false when no record exists.
	Get(ctx context.Context, userID, sortKey string) (rec Record, found bool, err error)

	// Put writes one record guarded by cond. A failed guard yields an
	// error matching ErrConditionFailed.
	Put(ctx context.Context, rec Record, cond Condition) error

	// Query returns every matching record, draining all result pages.
	Query(ctx context.Context, q Query) ([]Record, error)

	// TransactPut writes up to MaxTransactItems records atomically.
	TransactPut(ctx context.Context, recs []Record) error
}

// MaxTransactItems is the largest record count TransactPut accepts.
const MaxTransactItems = 25

// TombstoneRecord builds the record marking sortKey deleted at updatedAt.
func TombstoneRecord(userID, sortKey string, updatedAt int64) Record {
	return Record{
		AttrUserID:    &types.AttributeValueMemberS{Value: userID},
		AttrSortKey:   &types.AttributeValueMemberS{Value: sortKey},
		AttrUpdatedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(updatedAt, 10)},
		AttrDeleted:   &types.AttributeValueMemberBOOL{Value: true},
	}
}

// IsTombstone reports whether rec marks a deleted entity.
func IsTombstone(rec Record) bool {
	_, ok := rec[AttrDeleted]
	return ok
}

// SortKeyOf returns the sort key attribute of rec, or "" when missing.
func SortKeyOf(rec Record) string {
	if sk, ok := rec[AttrSortKey].(*types.AttributeValueMemberS); ok {
		return sk.Value
	}
	return ""
}
