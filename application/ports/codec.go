package ports

import "github.com/noctisdark/mazenrecords-sst/domain/core/entities"

// Codec converts entities of one kind to and from storage records and
// renders them for clients.
type Codec[T any] interface {
	Name() entities.Kind
	Prefix() string
	SortKey(id string) string

	Encode(userID string, e entities.Entity[T]) (Record, error)
	Decode(rec Record) (entities.Entity[T], error)

	// Present is the shape returned by reads and bulk responses.
	Present(e entities.Entity[T]) any
	// PresentRecord decodes rec and presents it.
	PresentRecord(rec Record) (any, error)
	// Echo is the shape returned after a single add or update.
	Echo(e entities.Entity[T]) any
}
