package store

import (
	"context"
	"encoding/json"
	"io/fs"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/evsync/internal/core"
)

func testStore() *Store {
	return &Store{sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar), table: "vehicles"}
}

func TestNew_ValidatesTableName(t *testing.T) {
	for _, bad := range []string{"", "vehicles; DROP TABLE x", "1vehicles", "a.b.c", `"vehicles"`} {
		_, err := New(nil, bad)
		assert.ErrorContains(t, err, "invalid vehicle table name", bad)
	}

	for _, good := range []string{"vehicles", "ev_catalog", "public.vehicles"} {
		_, err := New(nil, good)
		assert.ErrorContains(t, err, "pool is required", good)
	}
}

func TestRecordColumns(t *testing.T) {
	rec := core.DefaultAttributeGroups().Apply(core.Vehicle{ID: "ev01", Brand: "Tesla", Model: "Model 3"})

	cols, err := recordColumns(rec)
	require.NoError(t, err)

	assert.NotContains(t, cols, "id")
	assert.Equal(t, "no", cols["heat_pump"])
	assert.Equal(t, core.DefaultYear, cols["year"])
	assert.JSONEq(t, `{"base":0,"currency":"TRY"}`, cols["price"].(string))
	assert.JSONEq(t, `{"batteryYears":0,"vehicleYears":0}`, cols["warranty"].(string))
	assert.Equal(t, "[]", cols["images"])
	assert.Equal(t, "[]", cols["features"])

	for _, col := range []string{
		"charging_profile", "performance", "dimensions", "efficiency", "comfort",
		"price", "regional_status", "environmental_impact", "warranty",
	} {
		s, ok := cols[col].(string)
		require.True(t, ok, col)
		assert.True(t, json.Valid([]byte(s)), col)
		assert.True(t, strings.HasPrefix(s, "{"), "%s should be an object, got %s", col, s)
	}
}

func TestRecordColumns_Amenities(t *testing.T) {
	rec := core.DefaultAttributeGroups().Apply(core.Vehicle{
		ID:      "ev01",
		Comfort: &core.Comfort{Amenities: map[string]any{"massageSeats": true, "ambientLight": "64 colours"}},
	})

	cols, err := recordColumns(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amenities":{"massageSeats":true,"ambientLight":"64 colours"}}`, cols["comfort"].(string))
}

func TestInsertQuery(t *testing.T) {
	rec := core.DefaultAttributeGroups().Apply(core.Vehicle{ID: "ev01", Brand: "Tesla", Model: "Model 3"})

	q, err := testStore().insertQuery(rec)
	require.NoError(t, err)
	sqlStr, args, err := q.ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sqlStr, "INSERT INTO vehicles ("), sqlStr)
	assert.Contains(t, sqlStr, "battery_capacity_kwh,brand,")
	assert.Contains(t, sqlStr, "$20")
	assert.Len(t, args, 20)
	assert.Contains(t, args, "ev01")
}

func TestUpdateQuery(t *testing.T) {
	rec := core.DefaultAttributeGroups().Apply(core.Vehicle{ID: "ev01", Brand: "Tesla", Model: "Model Y"})

	q, err := testStore().updateQuery(rec)
	require.NoError(t, err)
	sqlStr, args, err := q.ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sqlStr, "UPDATE vehicles SET "), sqlStr)
	assert.Contains(t, sqlStr, "updated_at = now()")
	assert.True(t, strings.HasSuffix(sqlStr, "WHERE id = $20"), sqlStr)
	assert.Len(t, args, 20)
	assert.Equal(t, "ev01", args[len(args)-1])
}

func TestMigrate_UnknownCommand(t *testing.T) {
	err := Migrate(context.Background(), nil, "sideways")
	assert.ErrorContains(t, err, "unknown migration command")
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	b, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS vehicles")
	assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS sync_runs")
}
