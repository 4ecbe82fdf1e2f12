package services

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/batch"
	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/codec"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/memory"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
)

type syncFixture struct {
	store  *memory.Store
	brands *EntityService[entities.Brand]
	visits *EntityService[entities.Visit]
	sync   *SyncService
}

func newSyncFixture(publisher ports.EventPublisher, syncClock Clock) syncFixture {
	store := memory.NewStore()
	logger := zap.NewNop()
	writer := batch.NewWriter(store, batch.MaxBatchSize, logger, nil)
	return syncFixture{
		store:  store,
		brands: NewEntityService[entities.Brand](store, codec.Brands, nil, logger).WithClock(tick(1000)),
		visits: NewEntityService[entities.Visit](store, codec.Visits, nil, logger).WithClock(tick(1500)),
		sync:   NewSyncService(store, writer, codec.Visits, codec.Brands, publisher, nil, logger).WithClock(syncClock),
	}
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func manyVisits(n int) []entities.Entity[entities.Visit] {
	out := make([]entities.Entity[entities.Visit], n)
	for i := range out {
		out[i] = entities.Live(strconv.Itoa(i+1), entities.Visit{Client: "client " + strconv.Itoa(i+1)}, 0)
	}
	return out
}

func TestSyncService_UpdatesSince_StrictlyAfter(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	_, err := f.brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme("X1", "X2"), 0))
	require.NoError(t, err)

	// Act
	before, err := f.sync.UpdatesSince(ctx, "u1", 999)
	require.NoError(t, err)
	at, err := f.sync.UpdatesSince(ctx, "u1", 1000)
	require.NoError(t, err)

	// Assert
	require.Len(t, before.Brands, 1)
	assert.JSONEq(t, `{"id":"b1","name":"Acme","models":["X1","X2"],"updatedAt":1000}`, toJSON(t, before.Brands[0]))
	assert.Empty(t, before.Visits)
	assert.Empty(t, at.Brands)
	assert.Empty(t, at.Visits)
}

func TestSyncService_UpdatesSince_IncludesTombstones(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	_, err := f.visits.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("42", entities.Visit{Client: "Jane", Amount: 12.5}, 0))
	require.NoError(t, err)
	_, err = f.visits.DeleteByID(ctx, "u1", "42")
	require.NoError(t, err)

	// Act
	changes, err := f.sync.UpdatesSince(ctx, "u1", 0)

	// Assert
	require.NoError(t, err)
	require.Len(t, changes.Visits, 1)
	assert.JSONEq(t, `{"id":42,"deleted":true,"updatedAt":1501}`, toJSON(t, changes.Visits[0]))
	assert.Empty(t, changes.Brands)
}

func TestSyncService_DeleteAll(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	for _, id := range []string{"b1", "b2", "b3"} {
		_, err := f.brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live(id, acme(), 0))
		require.NoError(t, err)
	}
	_, err := f.brands.DeleteByID(ctx, "u1", "b3")
	require.NoError(t, err)

	// Act
	deleted, err := f.sync.DeleteAll(ctx, "u1", 4000)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	live, err := f.brands.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, live)

	changes, err := f.sync.UpdatesSince(ctx, "u1", 3999)
	require.NoError(t, err)
	assert.Len(t, changes.Brands, 2)
}

func TestSyncService_ReplaceAll(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	_, err := f.brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
	require.NoError(t, err)
	_, err = f.visits.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("7", entities.Visit{}, 0))
	require.NoError(t, err)

	// Act
	ts, err := f.sync.ReplaceAll(ctx, "u1", nil, []entities.Entity[entities.Brand]{
		entities.Live("b2", entities.Brand{Name: "Bolt", Models: entities.NewModelSet()}, 0),
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ts)

	brands, err := f.brands.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "b2", brands[0].ID())
	assert.Equal(t, int64(5000), brands[0].UpdatedAt())

	visits, err := f.visits.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, visits)

	changes, err := f.sync.UpdatesSince(ctx, "u1", 4999)
	require.NoError(t, err)
	assert.Len(t, changes.Brands, 2)
	require.Len(t, changes.Visits, 1)
	assert.JSONEq(t, `{"id":7,"deleted":true,"updatedAt":5000}`, toJSON(t, changes.Visits[0]))
}

func TestSyncService_ReplaceAll_PartialFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	f.store.FailTransactOnCall(2, nil)

	// Act
	_, err := f.sync.ReplaceAll(ctx, "u1", manyVisits(60), nil)

	// Assert
	require.Error(t, err)
	pw, ok := batch.AsPartialWrite(err)
	require.True(t, ok)
	assert.Equal(t, 1, pw.CommittedChunks)
	assert.Equal(t, 25, pw.CommittedRecords)
	assert.Equal(t, 2, pw.FailedChunk)
	assert.Equal(t, 3, pw.TotalChunks)
	assert.ErrorIs(t, err, memory.ErrInjected)

	visits, err := f.visits.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, visits, 25)
}

func TestSyncService_ReplaceAll_RejectsMissingIDs(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	_, err := f.brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
	require.NoError(t, err)

	// Act
	_, err = f.sync.ReplaceAll(ctx, "u1", nil, []entities.Entity[entities.Brand]{
		entities.Live("", acme(), 0),
	})

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	brands, err := f.brands.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, brands, 1)
}

func TestSyncService_Upload(t *testing.T) {
	// Arrange
	ctx := context.Background()
	publisher := new(MockPublisher)
	publisher.On("PublishChange", mock.Anything, ports.ChangeEvent{
		UserID: "u1", Operation: "upload", Timestamp: 5000, Visits: 1, Brands: 1,
	}).Return(nil)
	f := newSyncFixture(publisher, fixed(5000))

	// Act
	res, err := f.sync.Upload(ctx, "u1",
		[]entities.Entity[entities.Visit]{entities.Live("0x10", entities.Visit{Client: "Jane", Date: 1700000000000}, 0)},
		[]entities.Entity[entities.Brand]{entities.Live("b1", acme("Z", "A"), 0)},
	)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Timestamp)
	require.Len(t, res.Visits, 1)
	require.Len(t, res.Brands, 1)
	assert.JSONEq(t, `{"id":16,"date":1700000000000,"client":"Jane","contact":"","brand":"","model":"","problem":"","fix":"","amount":0,"updatedAt":5000}`, toJSON(t, res.Visits[0]))
	assert.JSONEq(t, `{"id":"b1","name":"Acme","models":["A","Z"],"updatedAt":5000}`, toJSON(t, res.Brands[0]))
	publisher.AssertExpectations(t)
}

func TestSyncService_Sync_UpsertWinsOverDelete(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))
	_, err := f.brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
	require.NoError(t, err)
	_, err = f.visits.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("3", entities.Visit{}, 0))
	require.NoError(t, err)

	// Act
	res, err := f.sync.Sync(ctx, "u1", SyncRequest{
		VisitDeletes: []string{"3"},
		BrandDeletes: []string{"b1"},
		BrandUpserts: []entities.Entity[entities.Brand]{entities.Live("b1", acme("New"), 0)},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Timestamp)
	assert.Empty(t, res.Visits)
	require.Len(t, res.Brands, 1)

	got, err := f.brands.GetByID(ctx, "u1", "b1")
	require.NoError(t, err)
	data, _ := got.Data()
	assert.True(t, data.Models.Has("New"))
	assert.Equal(t, int64(5000), got.UpdatedAt())

	_, err = f.visits.GetByID(ctx, "u1", "3")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSyncService_Sync_DeletingUnknownIDWritesTombstone(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newSyncFixture(nil, fixed(5000))

	// Act
	_, err := f.sync.Sync(ctx, "u1", SyncRequest{VisitDeletes: []string{"99"}})

	// Assert
	require.NoError(t, err)
	changes, err := f.sync.UpdatesSince(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, changes.Visits, 1)
	assert.JSONEq(t, `{"id":99,"deleted":true,"updatedAt":5000}`, toJSON(t, changes.Visits[0]))
}

func TestSyncService_Sync_RejectsEmptyDeleteID(t *testing.T) {
	// Arrange
	f := newSyncFixture(nil, fixed(5000))

	// Act
	_, err := f.sync.Sync(context.Background(), "u1", SyncRequest{BrandDeletes: []string{""}})

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}
