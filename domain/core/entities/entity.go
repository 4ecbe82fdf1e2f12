package entities

import "strings"

// Kind identifies an entity type stored in the records table.
// Its value is also the sort-key prefix of every record of that type.
type Kind string

const (
	KindBrand Kind = "Brand"
	KindVisit Kind = "Visit"
)

// Prefix returns the sort-key prefix for the kind, e.g. "Brand#".
func (k Kind) Prefix() string {
	return string(k) + "#"
}

// SortKey builds the sort key of the entity with the given id.
func (k Kind) SortKey(id string) string {
	return k.Prefix() + id
}

// IDFromSortKey recovers the entity id from a sort key of this kind.
// Ids may themselves contain '#', so only the leading prefix is stripped.
func (k Kind) IDFromSortKey(sortKey string) (string, bool) {
	return strings.CutPrefix(sortKey, k.Prefix())
}

// Entity is either a live value of T or a tombstone left behind by a delete.
// Exactly one of the two variants is active: a tombstone carries no data.
type Entity[T any] struct {
	id        string
	updatedAt int64
	data      *T
}

// Live creates a live entity.
func Live[T any](id string, data T, updatedAt int64) Entity[T] {
	return Entity[T]{id: id, updatedAt: updatedAt, data: &data}
}

// Tombstone creates a soft-deleted entity.
func Tombstone[T any](id string, updatedAt int64) Entity[T] {
	return Entity[T]{id: id, updatedAt: updatedAt}
}

// ID returns the entity id.
func (e Entity[T]) ID() string { return e.id }

// UpdatedAt returns the last modification time in epoch milliseconds.
func (e Entity[T]) UpdatedAt() int64 { return e.updatedAt }

// IsTombstone reports whether the entity has been deleted.
func (e Entity[T]) IsTombstone() bool { return e.data == nil }

// Data returns the live payload. ok is false for tombstones.
func (e Entity[T]) Data() (data T, ok bool) {
	if e.data == nil {
		return data, false
	}
	return *e.data, true
}

// Stamp returns a copy of the entity with a new modification time.
// The payload is shared, entities are treated as immutable values.
func (e Entity[T]) Stamp(updatedAt int64) Entity[T] {
	e.updatedAt = updatedAt
	return e
}
