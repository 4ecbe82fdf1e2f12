package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/codec"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/persistence/memory"
	pkgerrors "github.com/noctisdark/mazenrecords-sst/pkg/errors"
)

// MockPublisher is a mock implementation of ports.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChange(ctx context.Context, event ports.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// tick returns a clock that advances by one millisecond per call, starting at start.
func tick(start int64) Clock {
	now := start - 1
	return func() int64 {
		now++
		return now
	}
}

func fixed(at int64) Clock {
	return func() int64 { return at }
}

func acme(models ...string) entities.Brand {
	return entities.Brand{Name: "Acme", Models: entities.NewModelSet(models...)}
}

func newBrandService(store ports.RecordStore, clock Clock) *EntityService[entities.Brand] {
	return NewEntityService[entities.Brand](store, codec.Brands, ports.NoopPublisher{}, zap.NewNop()).WithClock(clock)
}

func TestEntityService_AddThenGet(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newBrandService(memory.NewStore(), fixed(1000))

	// Act
	written, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme("X1"), 0))
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, "u1", "b1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1000), written.UpdatedAt())
	assert.Equal(t, written, got)
	data, ok := got.Data()
	require.True(t, ok)
	assert.Equal(t, "Acme", data.Name)
	assert.True(t, data.Models.Has("X1"))
}

func TestEntityService_AddExistingFails(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newBrandService(memory.NewStore(), tick(1000))
	_, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
	require.NoError(t, err)

	// Act
	_, err = svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme("Y"), 0))

	// Assert
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ReasonAlreadyExists, appErr.Reason)
	assert.Equal(t, pkgerrors.ActionUpdate, appErr.Action)
	assert.Equal(t, "Brand with id: b1 already exists", appErr.Message)

	got, err := svc.GetByID(ctx, "u1", "b1")
	require.NoError(t, err)
	data, _ := got.Data()
	assert.Empty(t, data.Models.Sorted())
}

func TestEntityService_AddAfterDeleteResurrects(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newBrandService(memory.NewStore(), tick(1000))
	_, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
	require.NoError(t, err)
	_, err = svc.DeleteByID(ctx, "u1", "b1")
	require.NoError(t, err)

	// Act
	written, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme("Z"), 0))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1002), written.UpdatedAt())
	got, err := svc.GetByID(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.False(t, got.IsTombstone())
}

func TestEntityService_UpdateCreatesMissing(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newBrandService(memory.NewStore(), fixed(1000))

	// Act
	_, err := svc.AddOrUpdate(ctx, "u1", ModeUpdate, entities.Live("b9", acme("A"), 0))

	// Assert
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, "u1", "b9")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.UpdatedAt())
}

func TestEntityService_UpdateOverwrites(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newBrandService(memory.NewStore(), tick(1000))
	_, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme("X1"), 0))
	require.NoError(t, err)

	// Act
	_, err = svc.AddOrUpdate(ctx, "u1", ModeUpdate, entities.Live("b1", acme("X1", "X2"), 0))

	// Assert
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, "u1", "b1")
	require.NoError(t, err)
	data, _ := got.Data()
	assert.Equal(t, []string{"X1", "X2"}, data.Models.Sorted())
	assert.Equal(t, int64(1001), got.UpdatedAt())
}

func TestEntityService_Delete(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(ctx context.Context, svc *EntityService[entities.Brand])
		wantErr bool
		wantAt  int64
		wantMsg string
	}{
		{
			name: "live entity",
			setup: func(ctx context.Context, svc *EntityService[entities.Brand]) {
				_, _ = svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
			},
			wantAt: 1001,
		},
		{
			name:    "never existed",
			setup:   func(context.Context, *EntityService[entities.Brand]) {},
			wantErr: true,
			wantMsg: "Brand with id: b1 doesn't exist",
		},
		{
			name: "already deleted",
			setup: func(ctx context.Context, svc *EntityService[entities.Brand]) {
				_, _ = svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))
				_, _ = svc.DeleteByID(ctx, "u1", "b1")
			},
			wantErr: true,
			wantMsg: "Brand with id: b1 doesn't exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			svc := newBrandService(memory.NewStore(), tick(1000))
			tt.setup(ctx, svc)

			// Act
			at, err := svc.DeleteByID(ctx, "u1", "b1")

			// Assert
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsNotFound(err))
				assert.Equal(t, tt.wantMsg, pkgerrors.GetAppError(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAt, at)

			_, err = svc.GetByID(ctx, "u1", "b1")
			assert.True(t, pkgerrors.IsNotFound(err))
		})
	}
}

func TestEntityService_GetByID_Invalid(t *testing.T) {
	// Arrange
	svc := newBrandService(memory.NewStore(), fixed(1))

	// Act
	_, err := svc.GetByID(context.Background(), "u1", "")

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestEntityService_List(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewStore()
	brands := newBrandService(store, tick(1000))
	visits := NewEntityService[entities.Visit](store, codec.Visits, nil, zap.NewNop()).WithClock(tick(2000))

	for _, id := range []string{"b1", "b2", "b3"} {
		_, err := brands.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live(id, acme(), 0))
		require.NoError(t, err)
	}
	_, err := brands.DeleteByID(ctx, "u1", "b2")
	require.NoError(t, err)
	_, err = visits.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("1", entities.Visit{Client: "Jane"}, 0))
	require.NoError(t, err)
	_, err = brands.AddOrUpdate(ctx, "u2", ModeAdd, entities.Live("b4", acme(), 0))
	require.NoError(t, err)

	// Act
	got, err := brands.List(ctx, "u1")

	// Assert
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID())
	}
	assert.ElementsMatch(t, []string{"b1", "b3"}, ids)
}

func TestEntityService_PublishesChanges(t *testing.T) {
	// Arrange
	ctx := context.Background()
	publisher := new(MockPublisher)
	publisher.On("PublishChange", mock.Anything, ports.ChangeEvent{
		UserID: "u1", Operation: "add", Timestamp: 1000, Brands: 1,
	}).Return(errors.New("bus unavailable"))
	svc := NewEntityService[entities.Brand](memory.NewStore(), codec.Brands, publisher, zap.NewNop()).WithClock(fixed(1000))

	// Act
	_, err := svc.AddOrUpdate(ctx, "u1", ModeAdd, entities.Live("b1", acme(), 0))

	// Assert
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}
