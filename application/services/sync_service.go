package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/batch"
	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
	"github.com/noctisdark/mazenrecords-sst/pkg/utils"
)

// BulkResult is returned by Upload and Sync. Visits and Brands hold the
// written upserts in their presented form.
type BulkResult struct {
	Visits    []any `json:"visits"`
	Brands    []any `json:"brands"`
	Timestamp int64 `json:"timestamp"`
}

// Changes is the change feed returned by UpdatesSince. Tombstones are
// included so clients can drop deleted entities.
type Changes struct {
	Visits []any `json:"visits"`
	Brands []any `json:"brands"`
}

// SyncRequest carries the deletions and upserts of one Sync call.
type SyncRequest struct {
	VisitDeletes []string
	BrandDeletes []string
	VisitUpserts []entities.Entity[entities.Visit]
	BrandUpserts []entities.Entity[entities.Brand]
}

// SyncService implements the bulk operations over a user's whole dataset.
//
// Every bulk write is split in chunks of at most 25 records, each committed
// atomically. Nothing is atomic across chunks: a failure leaves earlier
// chunks committed and is reported as a *batch.PartialWriteError.
type SyncService struct {
	store     ports.RecordStore
	writer    *batch.Writer
	visits    ports.Codec[entities.Visit]
	brands    ports.Codec[entities.Brand]
	publisher ports.EventPublisher
	tracer    *observability.Tracer
	clock     Clock
	logger    *zap.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(
	store ports.RecordStore,
	writer *batch.Writer,
	visits ports.Codec[entities.Visit],
	brands ports.Codec[entities.Brand],
	publisher ports.EventPublisher,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		store:     store,
		writer:    writer,
		visits:    visits,
		brands:    brands,
		publisher: publisher,
		tracer:    tracer,
		clock:     utils.NowMillis,
		logger:    logger,
	}
}

// WithClock replaces the time source, mainly for tests
func (s *SyncService) WithClock(clock Clock) *SyncService {
	s.clock = clock
	return s
}

// DeleteAll tombstones every live record of userID at the given time and
// returns how many records it tombstoned.
func (s *SyncService) DeleteAll(ctx context.Context, userID string, at int64) (int, error) {
	var deleted int
	err := s.tracer.Trace(ctx, "delete_all", func(ctx context.Context) error {
		s.tracer.AddAnnotation(ctx, "userId", userID)
		recs, err := s.store.Query(ctx, ports.Query{
			UserID:     userID,
			Projection: []string{ports.AttrDeleted, ports.AttrSortKey},
		})
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		sortKeys := make([]string, 0, len(recs))
		for _, rec := range recs {
			if !ports.IsTombstone(rec) {
				sortKeys = append(sortKeys, ports.SortKeyOf(rec))
			}
		}

		res, err := batch.WriteAll(ctx, s.writer, sortKeys, func(sortKey string) (ports.Record, error) {
			return ports.TombstoneRecord(userID, sortKey, at), nil
		})
		deleted = res.Committed
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("delete all: %w", err)
	}

	s.logger.Info("dataset cleared", zap.String("userId", userID), zap.Int("records", deleted))
	return deleted, nil
}

// ReplaceAll swaps the user's dataset for the given entities. Existing
// records are tombstoned, then visits and brands are written, all with one
// timestamp which is returned.
func (s *SyncService) ReplaceAll(ctx context.Context, userID string, visits []entities.Entity[entities.Visit], brands []entities.Entity[entities.Brand]) (int64, error) {
	res, err := s.replace(ctx, "replace", userID, visits, brands)
	if err != nil {
		return 0, err
	}
	return res.Timestamp, nil
}

// Upload is ReplaceAll returning the written entities as clients will read
// them back.
func (s *SyncService) Upload(ctx context.Context, userID string, visits []entities.Entity[entities.Visit], brands []entities.Entity[entities.Brand]) (BulkResult, error) {
	return s.replace(ctx, "upload", userID, visits, brands)
}

func (s *SyncService) replace(ctx context.Context, op, userID string, visits []entities.Entity[entities.Visit], brands []entities.Entity[entities.Brand]) (BulkResult, error) {
	if err := validateIDs(s.visits.Name(), visits); err != nil {
		return BulkResult{}, err
	}
	if err := validateIDs(s.brands.Name(), brands); err != nil {
		return BulkResult{}, err
	}

	ts := s.clock()
	res := BulkResult{Visits: []any{}, Brands: []any{}, Timestamp: ts}

	if _, err := s.DeleteAll(ctx, userID, ts); err != nil {
		return BulkResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var err error
	if res.Visits, err = upsertAll(ctx, s, "write_visits", userID, ts, s.visits, visits); err != nil {
		return BulkResult{}, fmt.Errorf("%s visits: %w", op, err)
	}
	if res.Brands, err = upsertAll(ctx, s, "write_brands", userID, ts, s.brands, brands); err != nil {
		return BulkResult{}, fmt.Errorf("%s brands: %w", op, err)
	}

	s.logger.Info("dataset replaced",
		zap.String("operation", op),
		zap.String("userId", userID),
		zap.Int("visits", len(visits)),
		zap.Int("brands", len(brands)),
		zap.Int64("timestamp", ts),
	)
	notify(ctx, s.publisher, s.logger, ports.ChangeEvent{
		UserID:    userID,
		Operation: op,
		Timestamp: ts,
		Visits:    len(visits),
		Brands:    len(brands),
	})
	return res, nil
}

// Sync applies client-side changes with one timestamp. Deletions are
// written first, visits then brands, followed by visit and brand upserts,
// so an id both deleted and upserted ends up live.
func (s *SyncService) Sync(ctx context.Context, userID string, req SyncRequest) (BulkResult, error) {
	for _, id := range req.VisitDeletes {
		if id == "" {
			return BulkResult{}, pkgerrors.NewValidationError("Invalid visit id in visitDeletes")
		}
	}
	for _, id := range req.BrandDeletes {
		if id == "" {
			return BulkResult{}, pkgerrors.NewValidationError("Invalid brand id in brandDeletes")
		}
	}
	if err := validateIDs(s.visits.Name(), req.VisitUpserts); err != nil {
		return BulkResult{}, err
	}
	if err := validateIDs(s.brands.Name(), req.BrandUpserts); err != nil {
		return BulkResult{}, err
	}

	ts := s.clock()
	res := BulkResult{Timestamp: ts}

	if err := deleteIDs(ctx, s, userID, ts, s.visits, req.VisitDeletes); err != nil {
		return BulkResult{}, fmt.Errorf("sync visit deletes: %w", err)
	}
	if err := deleteIDs(ctx, s, userID, ts, s.brands, req.BrandDeletes); err != nil {
		return BulkResult{}, fmt.Errorf("sync brand deletes: %w", err)
	}

	var err error
	if res.Visits, err = upsertAll(ctx, s, "write_visits", userID, ts, s.visits, req.VisitUpserts); err != nil {
		return BulkResult{}, fmt.Errorf("sync visit upserts: %w", err)
	}
	if res.Brands, err = upsertAll(ctx, s, "write_brands", userID, ts, s.brands, req.BrandUpserts); err != nil {
		return BulkResult{}, fmt.Errorf("sync brand upserts: %w", err)
	}

	s.logger.Info("dataset synced",
		zap.String("userId", userID),
		zap.Int("visitDeletes", len(req.VisitDeletes)),
		zap.Int("brandDeletes", len(req.BrandDeletes)),
		zap.Int("visitUpserts", len(req.VisitUpserts)),
		zap.Int("brandUpserts", len(req.BrandUpserts)),
		zap.Int64("timestamp", ts),
	)
	notify(ctx, s.publisher, s.logger, ports.ChangeEvent{
		UserID:    userID,
		Operation: "sync",
		Timestamp: ts,
		Visits:    len(req.VisitDeletes) + len(req.VisitUpserts),
		Brands:    len(req.BrandDeletes) + len(req.BrandUpserts),
	})
	return res, nil
}

// UpdatesSince returns every record changed strictly after epoch, split by
// kind. The whole result is read into memory; there is no paging or limit.
func (s *SyncService) UpdatesSince(ctx context.Context, userID string, epoch int64) (Changes, error) {
	recs, err := s.store.Query(ctx, ports.Query{
		UserID:       userID,
		UpdatedAfter: &epoch,
	})
	if err != nil {
		return Changes{}, fmt.Errorf("updates since %d: %w", epoch, err)
	}

	changes := Changes{Visits: []any{}, Brands: []any{}}
	for _, rec := range recs {
		sortKey := ports.SortKeyOf(rec)
		switch {
		case strings.HasPrefix(sortKey, s.visits.Prefix()):
			v, err := s.visits.PresentRecord(rec)
			if err != nil {
				return Changes{}, err
			}
			changes.Visits = append(changes.Visits, v)
		case strings.HasPrefix(sortKey, s.brands.Prefix()):
			b, err := s.brands.PresentRecord(rec)
			if err != nil {
				return Changes{}, err
			}
			changes.Brands = append(changes.Brands, b)
		default:
			s.logger.Warn("skipping record of unknown kind", zap.String("sortKey", sortKey))
		}
	}
	return changes, nil
}

// upsertAll stamps and writes entities of one kind. The presented form of
// each written record is collected in the same pass.
func upsertAll[T any](ctx context.Context, s *SyncService, span, userID string, ts int64, codec ports.Codec[T], items []entities.Entity[T]) ([]any, error) {
	presented := make([]any, 0, len(items))
	err := s.tracer.Trace(ctx, span, func(ctx context.Context) error {
		_, err := batch.WriteAll(ctx, s.writer, items, func(e entities.Entity[T]) (ports.Record, error) {
			rec, err := codec.Encode(userID, e.Stamp(ts))
			if err != nil {
				return nil, err
			}
			written, err := codec.Decode(rec)
			if err != nil {
				return nil, err
			}
			presented = append(presented, codec.Present(written))
			return rec, nil
		})
		return err
	})
	return presented, err
}

func deleteIDs[T any](ctx context.Context, s *SyncService, userID string, ts int64, codec ports.Codec[T], ids []string) error {
	return s.tracer.Trace(ctx, "delete_"+lower(codec.Name())+"s", func(ctx context.Context) error {
		_, err := batch.WriteAll(ctx, s.writer, ids, func(id string) (ports.Record, error) {
			return codec.Encode(userID, entities.Tombstone[T](id, ts))
		})
		return err
	})
}

func validateIDs[T any](kind entities.Kind, items []entities.Entity[T]) error {
	for i, e := range items {
		if e.ID() == "" {
			return pkgerrors.NewValidationError(fmt.Sprintf("Invalid %s id at index %d", lower(kind), i))
		}
	}
	return nil
}
