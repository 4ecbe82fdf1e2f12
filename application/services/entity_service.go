package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
	"github.com/noctisdark/mazenrecords-sst/pkg/utils"
)

// Clock returns the current time in epoch milliseconds.
type Clock func() int64

// WriteMode selects the conflict semantics of AddOrUpdate.
type WriteMode string

const (
	// ModeAdd creates the entity; it fails when a live entity has the id.
	// A tombstoned id may be added again.
	ModeAdd WriteMode = "add"
	// ModeUpdate overwrites unconditionally. Updating an id that was never
	// added creates it.
	ModeUpdate WriteMode = "update"
)

// EntityService provides single-entity operations for one entity kind
type EntityService[T any] struct {
	store     ports.RecordStore
	codec     ports.Codec[T]
	publisher ports.EventPublisher
	clock     Clock
	logger    *zap.Logger
}

// NewEntityService creates a new entity service
func NewEntityService[T any](
	store ports.RecordStore,
	codec ports.Codec[T],
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *EntityService[T] {
	return &EntityService[T]{
		store:     store,
		codec:     codec,
		publisher: publisher,
		clock:     utils.NowMillis,
		logger:    logger,
	}
}

// WithClock replaces the time source, mainly for tests
func (s *EntityService[T]) WithClock(clock Clock) *EntityService[T] {
	s.clock = clock
	return s
}

// Codec returns the codec of the service kind
func (s *EntityService[T]) Codec() ports.Codec[T] {
	return s.codec
}

// GetByID returns the live entity with the given id. Missing and deleted
// entities are both reported as not found.
func (s *EntityService[T]) GetByID(ctx context.Context, userID, id string) (entities.Entity[T], error) {
	var zero entities.Entity[T]
	if id == "" {
		return zero, s.invalidID(id)
	}

	rec, found, err := s.store.Get(ctx, userID, s.codec.SortKey(id))
	if err != nil {
		return zero, fmt.Errorf("get %s %s: %w", s.codec.Name(), id, err)
	}
	if !found || ports.IsTombstone(rec) {
		return zero, pkgerrors.NewNotFoundError(string(s.codec.Name()), id)
	}

	e, err := s.codec.Decode(rec)
	if err != nil {
		return zero, err
	}
	return e, nil
}

// List returns every live entity of the kind owned by userID
func (s *EntityService[T]) List(ctx context.Context, userID string) ([]entities.Entity[T], error) {
	recs, err := s.store.Query(ctx, ports.Query{
		UserID:        userID,
		SortKeyPrefix: s.codec.Prefix(),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.codec.Name(), err)
	}

	out := make([]entities.Entity[T], 0, len(recs))
	for _, rec := range recs {
		if ports.IsTombstone(rec) {
			continue
		}
		e, err := s.codec.Decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// AddOrUpdate stamps e with the current time and writes it. It returns the
// stamped entity as written.
func (s *EntityService[T]) AddOrUpdate(ctx context.Context, userID string, mode WriteMode, e entities.Entity[T]) (entities.Entity[T], error) {
	var zero entities.Entity[T]
	if e.ID() == "" {
		return zero, s.invalidID(e.ID())
	}

	stamped := e.Stamp(s.clock())
	rec, err := s.codec.Encode(userID, stamped)
	if err != nil {
		return zero, fmt.Errorf("encode %s %s: %w", s.codec.Name(), e.ID(), err)
	}

	cond := ports.ConditionNone
	if mode == ModeAdd {
		cond = ports.ConditionAbsentOrTombstone
	}

	if err := s.store.Put(ctx, rec, cond); err != nil {
		if errors.Is(err, ports.ErrConditionFailed) {
			return zero, pkgerrors.NewAlreadyExistsError(string(s.codec.Name()), e.ID())
		}
		return zero, err
	}

	s.logger.Debug("entity written",
		zap.String("kind", string(s.codec.Name())),
		zap.String("id", e.ID()),
		zap.String("mode", string(mode)),
	)
	notify(ctx, s.publisher, s.logger, ports.ChangeEvent{
		UserID:    userID,
		Operation: string(mode),
		Timestamp: stamped.UpdatedAt(),
		Visits:    s.countIf(entities.KindVisit),
		Brands:    s.countIf(entities.KindBrand),
	})
	return stamped, nil
}

// DeleteByID replaces a live entity with a tombstone and returns the
// deletion time. Deleting a missing or already deleted id is not found.
func (s *EntityService[T]) DeleteByID(ctx context.Context, userID, id string) (int64, error) {
	if id == "" {
		return 0, s.invalidID(id)
	}

	deletedAt := s.clock()
	rec := ports.TombstoneRecord(userID, s.codec.SortKey(id), deletedAt)

	if err := s.store.Put(ctx, rec, ports.ConditionLive); err != nil {
		if errors.Is(err, ports.ErrConditionFailed) {
			return 0, pkgerrors.NewNotFoundError(string(s.codec.Name()), id)
		}
		return 0, err
	}

	notify(ctx, s.publisher, s.logger, ports.ChangeEvent{
		UserID:    userID,
		Operation: "delete",
		Timestamp: deletedAt,
		Visits:    s.countIf(entities.KindVisit),
		Brands:    s.countIf(entities.KindBrand),
	})
	return deletedAt, nil
}

func (s *EntityService[T]) invalidID(id string) error {
	return pkgerrors.NewValidationError(fmt.Sprintf("Invalid %s id: %s", lower(s.codec.Name()), id))
}

func (s *EntityService[T]) countIf(kind entities.Kind) int {
	if s.codec.Name() == kind {
		return 1
	}
	return 0
}
