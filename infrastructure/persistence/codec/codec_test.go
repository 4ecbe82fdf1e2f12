package codec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/domain/core/entities"
)

func sampleVisit() entities.Visit {
	return entities.Visit{
		Date:    1700000000000,
		Client:  "Sam",
		Contact: "555-0100",
		Brand:   "Acme",
		Model:   "X",
		Problem: "no power",
		Fix:     "replaced fuse",
		Amount:  42.5,
	}
}

func TestBrands_EncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		entity entities.Entity[entities.Brand]
	}{
		{name: "live", entity: entities.Live("b1", entities.Brand{Name: "Acme", Models: entities.NewModelSet("X", "Y")}, 1000)},
		{name: "live without models", entity: entities.Live("b2", entities.Brand{Name: "Bare", Models: entities.NewModelSet()}, 1000)},
		{name: "tombstone", entity: entities.Tombstone[entities.Brand]("b3", 2000)},
		{name: "id with separator", entity: entities.Live("a#b", entities.Brand{Name: "Hash", Models: entities.NewModelSet("Z")}, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Brands.Encode("u1", tt.entity)
			require.NoError(t, err)

			got, err := Brands.Decode(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.entity, got)
		})
	}
}

func TestVisits_EncodeDecodeRoundTrip(t *testing.T) {
	live := entities.Live("17", sampleVisit(), 5)
	dead := entities.Tombstone[entities.Visit]("18", 6)

	for _, e := range []entities.Entity[entities.Visit]{live, dead} {
		rec, err := Visits.Encode("u1", e)
		require.NoError(t, err)

		got, err := Visits.Decode(rec)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestEncode_RecordLayout(t *testing.T) {
	t.Run("live brand", func(t *testing.T) {
		rec, err := Brands.Encode("u1", entities.Live("b1", entities.Brand{Name: "Acme", Models: entities.NewModelSet("Y", "X")}, 1000))
		require.NoError(t, err)

		assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, rec["userId"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Brand#b1"}, rec["sortKey"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1000"}, rec["updatedAt"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Acme"}, rec["name"])
		require.IsType(t, &types.AttributeValueMemberSS{}, rec["models"])
		assert.ElementsMatch(t, []string{"X", "Y"}, rec["models"].(*types.AttributeValueMemberSS).Value)
		assert.NotContains(t, rec, "deleted")
	})

	t.Run("empty model set is omitted", func(t *testing.T) {
		rec, err := Brands.Encode("u1", entities.Live("b1", entities.Brand{Name: "Acme"}, 1))
		require.NoError(t, err)
		assert.NotContains(t, rec, "models")
	})

	t.Run("tombstone carries keys only", func(t *testing.T) {
		rec, err := Visits.Encode("u1", entities.Tombstone[entities.Visit]("9", 77))
		require.NoError(t, err)

		assert.Len(t, rec, 4)
		assert.Equal(t, &types.AttributeValueMemberS{Value: "Visit#9"}, rec["sortKey"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "77"}, rec["updatedAt"])
		assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, rec["deleted"])
		assert.True(t, ports.IsTombstone(rec))
	})
}

func TestDecode_WrongKind(t *testing.T) {
	rec, err := Brands.Encode("u1", entities.Live("b1", entities.Brand{Name: "Acme"}, 1))
	require.NoError(t, err)

	_, err = Visits.Decode(rec)
	assert.Error(t, err)
}

func TestDecode_MissingModelsIsEmptySet(t *testing.T) {
	rec := ports.Record{
		"userId":    &types.AttributeValueMemberS{Value: "u1"},
		"sortKey":   &types.AttributeValueMemberS{Value: "Brand#b1"},
		"updatedAt": &types.AttributeValueMemberN{Value: "3"},
		"name":      &types.AttributeValueMemberS{Value: "Acme"},
	}

	e, err := Brands.Decode(rec)
	require.NoError(t, err)
	b, ok := e.Data()
	require.True(t, ok)
	assert.NotNil(t, b.Models)
	assert.Empty(t, b.Models)
}

func TestPresent_Brand(t *testing.T) {
	live := entities.Live("b1", entities.Brand{Name: "Acme", Models: entities.NewModelSet("Y", "X")}, 1000)
	b, err := json.Marshal(Brands.Present(live))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","name":"Acme","models":["X","Y"],"updatedAt":1000}`, string(b))

	empty := entities.Live("b2", entities.Brand{Name: "Bare"}, 1)
	b, err = json.Marshal(Brands.Present(empty))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b2","name":"Bare","models":[],"updatedAt":1}`, string(b))

	b, err = json.Marshal(Brands.Present(entities.Tombstone[entities.Brand]("b1", 2000)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","deleted":true,"updatedAt":2000}`, string(b))
}

func TestPresent_Visit(t *testing.T) {
	b, err := json.Marshal(Visits.Present(entities.Live("17", sampleVisit(), 5)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":17,"date":1700000000000,"client":"Sam","contact":"555-0100","brand":"Acme","model":"X","problem":"no power","fix":"replaced fuse","amount":42.5,"updatedAt":5}`, string(b))

	b, err = json.Marshal(Visits.Present(entities.Tombstone[entities.Visit]("18", 6)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":18,"deleted":true,"updatedAt":6}`, string(b))

	b, err = json.Marshal(Visits.Present(entities.Tombstone[entities.Visit]("abc", 6)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"deleted":true,"updatedAt":6}`, string(b))
}

func TestEcho_VisitKeepsStringID(t *testing.T) {
	b, err := json.Marshal(Visits.Echo(entities.Live("17", sampleVisit(), 5)))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "17", out["id"])
}

func TestParseNumericID(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "42", want: 42, ok: true},
		{in: " 7 ", want: 7, ok: true},
		{in: "", want: 0, ok: true},
		{in: "1.5", want: 1.5, ok: true},
		{in: "1e3", want: 1000, ok: true},
		{in: "0x1A", want: 26, ok: true},
		{in: "abc", ok: false},
		{in: "12abc", ok: false},
		{in: "NaN", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumericID(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	inf, ok := ParseNumericID("Infinity")
	assert.True(t, ok)
	assert.True(t, math.IsInf(inf, 1))
}

func TestParseJSON(t *testing.T) {
	t.Run("brand", func(t *testing.T) {
		e, err := Brands.ParseJSON([]byte(`{"id":"b1","name":"Acme","models":["X","X","Y"]}`))
		require.NoError(t, err)
		assert.Equal(t, "b1", e.ID())
		b, ok := e.Data()
		require.True(t, ok)
		assert.Len(t, b.Models, 2)
	})

	t.Run("visit with numeric id", func(t *testing.T) {
		e, err := Visits.ParseJSON([]byte(`{"id":5,"client":"Sam","amount":10}`))
		require.NoError(t, err)
		assert.Equal(t, "5", e.ID())
	})

	t.Run("visit date in any number form", func(t *testing.T) {
		for _, date := range []string{`1700000000000`, `1.7e12`, `1700000000000.0`} {
			e, err := Visits.ParseJSON([]byte(`{"id":"5","date":` + date + `}`))
			require.NoError(t, err, date)
			v, ok := e.Data()
			require.True(t, ok)
			assert.Equal(t, int64(1700000000000), v.Date, date)
		}
	})

	t.Run("visit date must be integral", func(t *testing.T) {
		for _, date := range []string{`1.5`, `1e400`, `true`} {
			_, err := Visits.ParseJSON([]byte(`{"id":"5","date":` + date + `}`))
			assert.Error(t, err, date)
		}
	})

	t.Run("deleted member yields tombstone", func(t *testing.T) {
		e, err := Visits.ParseJSON([]byte(`{"id":"5","deleted":true,"updatedAt":1}`))
		require.NoError(t, err)
		assert.True(t, e.IsTombstone())
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := Brands.ParseJSON([]byte(`{"name":"Acme"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id is required")
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := Brands.ParseJSON([]byte(`"b1"`))
		assert.Error(t, err)
	})
}

func TestParseJSONList_ReportsIndex(t *testing.T) {
	_, err := Visits.ParseJSONList([]json.RawMessage{
		json.RawMessage(`{"id":"1"}`),
		json.RawMessage(`{"client":"no id"}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}
