// Package codec maps domain entities to table records and to their JSON
// presentation. Each entity type is described by a Kind value carrying the
// functions for that type; services are generic over it.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
)

// Kind bundles the encoding capabilities of one entity type.
type Kind[T any] struct {
	kind entities.Kind

	encodeLive func(userID, id string, data T, updatedAt int64) (ports.Record, error)
	decodeLive func(rec ports.Record) (T, error)
	present    func(e entities.Entity[T]) any
	echo       func(e entities.Entity[T]) any
	parse      func(raw []byte) (entities.Entity[T], error)
}

// Name returns the entity kind, e.g. "Brand".
func (k Kind[T]) Name() entities.Kind { return k.kind }

// Prefix returns the sort-key prefix of the kind.
func (k Kind[T]) Prefix() string { return k.kind.Prefix() }

// SortKey builds the sort key of id.
func (k Kind[T]) SortKey(id string) string { return k.kind.SortKey(id) }

// Encode builds the storage record of e for userID. Tombstones carry only
// the key attributes, updatedAt and the deleted flag.
func (k Kind[T]) Encode(userID string, e entities.Entity[T]) (ports.Record, error) {
	data, ok := e.Data()
	if !ok {
		return ports.TombstoneRecord(userID, k.kind.SortKey(e.ID()), e.UpdatedAt()), nil
	}
	return k.encodeLive(userID, e.ID(), data, e.UpdatedAt())
}

// Decode rebuilds an entity from its storage record. The variant is chosen
// by the presence of the deleted attribute.
func (k Kind[T]) Decode(rec ports.Record) (entities.Entity[T], error) {
	var hdr recordHeader
	if err := attributevalue.UnmarshalMap(rec, &hdr); err != nil {
		return entities.Entity[T]{}, fmt.Errorf("decode %s record header: %w", k.kind, err)
	}

	id, ok := k.kind.IDFromSortKey(hdr.SortKey)
	if !ok {
		return entities.Entity[T]{}, fmt.Errorf("sort key %q is not a %s record", hdr.SortKey, k.kind)
	}

	if ports.IsTombstone(rec) {
		return entities.Tombstone[T](id, hdr.UpdatedAt), nil
	}

	data, err := k.decodeLive(rec)
	if err != nil {
		return entities.Entity[T]{}, fmt.Errorf("decode %s %s: %w", k.kind, id, err)
	}
	return entities.Live(id, data, hdr.UpdatedAt), nil
}

// Present returns the JSON shape clients read back for e.
func (k Kind[T]) Present(e entities.Entity[T]) any { return k.present(e) }

// PresentRecord decodes rec and presents it.
func (k Kind[T]) PresentRecord(rec ports.Record) (any, error) {
	e, err := k.Decode(rec)
	if err != nil {
		return nil, err
	}
	return k.Present(e), nil
}

// Echo returns e in the shape it was submitted in.
func (k Kind[T]) Echo(e entities.Entity[T]) any { return k.echo(e) }

// ParseJSON decodes a client-submitted entity. An object carrying a
// "deleted" member is read as a tombstone.
func (k Kind[T]) ParseJSON(raw []byte) (entities.Entity[T], error) {
	return k.parse(raw)
}

// ParseJSONList decodes a list of client-submitted entities.
func (k Kind[T]) ParseJSONList(raw []json.RawMessage) ([]entities.Entity[T], error) {
	out := make([]entities.Entity[T], 0, len(raw))
	for i, item := range raw {
		e, err := k.parse(item)
		if err != nil {
			return nil, fmt.Errorf("%s at index %d: %w", k.kind, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

type recordHeader struct {
	UserID    string `dynamodbav:"userId"`
	SortKey   string `dynamodbav:"sortKey"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

// tombstoneJSON is the presentation of a deleted entity. ID is a string for
// brands and a number for visits.
type tombstoneJSON[ID any] struct {
	ID        ID    `json:"id"`
	Deleted   bool  `json:"deleted"`
	UpdatedAt int64 `json:"updatedAt"`
}

// submittedEnvelope holds the members every submitted entity shares.
type submittedEnvelope struct {
	ID      FlexibleID       `json:"id" validate:"required"`
	Deleted *json.RawMessage `json:"deleted"`
}
