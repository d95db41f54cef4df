// internal/fixtures/database_test.go
package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagekit/internal/config"
)

func newMemoryDB(t *testing.T) *RedisDatabase {
	t.Helper()
	db, err := NewMemoryDatabase("unit", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRedisDatabase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t)

	require.NoError(t, db.CreateTable(ctx, "users", Schema{"id": "integer", "email": "string"}))
	schema, err := db.Schema(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, Schema{"id": "integer", "email": "string"}, schema)

	require.NoError(t, db.Insert(ctx, "users", Record{"id": 1, "email": "a@example.com", "role": "user"}))
	require.NoError(t, db.Insert(ctx, "users", Record{"id": 2, "email": "b@example.com", "role": "admin"}))
	require.NoError(t, db.Insert(ctx, "users", Record{"id": 3, "email": "c@example.com", "role": "user"}))

	all, err := db.Query(ctx, "users", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a@example.com", all[0]["email"], "rows keep insertion order")

	users, err := db.Query(ctx, "users", Record{"role": "user"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// Integers come back as float64 from JSON but still match int filters.
	byID, err := db.Query(ctx, "users", Record{"id": 2, "role": "admin"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "b@example.com", byID[0]["email"])

	none, err := db.Query(ctx, "users", Record{"id": 2, "role": "user"})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, db.DeleteAll(ctx, "users"))
	all, err = db.Query(ctx, "users", nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, db.DropTable(ctx, "users"))
	err = db.Insert(ctx, "users", Record{"id": 4})
	assert.ErrorIs(t, err, ErrNoTable)
	schema, err = db.Schema(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestRedisDatabase_MissingTable(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t)

	rows, err := db.Query(ctx, "ghosts", Record{"id": 1})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, db.DeleteAll(ctx, "ghosts"))
	assert.NoError(t, db.DropTable(ctx, "ghosts"))
	assert.ErrorIs(t, db.Insert(ctx, "ghosts", Record{"id": 1}), ErrNoTable)
}

func TestRedisDatabase_CreateTableReplaces(t *testing.T) {
	ctx := context.Background()
	db := newMemoryDB(t)
	require.NoError(t, db.CreateTable(ctx, "t", nil))
	require.NoError(t, db.Insert(ctx, "t", Record{"x": 1}))
	require.NoError(t, db.CreateTable(ctx, "t", nil))
	rows, err := db.Query(ctx, "t", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRedisDatabase_NamespacesByName(t *testing.T) {
	ctx := context.Background()
	first := newMemoryDB(t)
	// A second database on the same server must not see the first's tables.
	second := newRedisDatabase("other", first.client, zaptest.NewLogger(t))

	require.NoError(t, first.CreateTable(ctx, "users", nil))
	assert.ErrorIs(t, second.Insert(ctx, "users", Record{"id": 1}), ErrNoTable)
}

func TestOpenDatabase(t *testing.T) {
	ctx := context.Background()

	db, err := OpenDatabase(ctx, config.DatabaseConfig{Backend: "memory", Name: "open"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenDatabase(ctx, config.DatabaseConfig{Backend: "mongo"}, nil)
	assert.EqualError(t, err, `unknown database backend "mongo"`)

	_, err = OpenDatabase(ctx, config.DatabaseConfig{Backend: "redis", URL: "not a url"}, nil)
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestDialRedis(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryDB(t)

	db, err := DialRedis(ctx, "redis://"+mem.server.Addr()+"/0", "dialed", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.CreateTable(ctx, "products", Schema{"name": "string"}))
	require.NoError(t, db.Insert(ctx, "products", Record{"name": "Mouse"}))
	assert.True(t, mem.server.Exists("pagekit:dialed:rows:products"))
}

func TestMatches(t *testing.T) {
	rec := Record{"id": float64(1), "name": "Laptop", "price": 999.99}
	assert.True(t, matches(rec, nil))
	assert.True(t, matches(rec, Record{"id": 1}))
	assert.True(t, matches(rec, Record{"price": 999.99, "name": "Laptop"}))
	assert.False(t, matches(rec, Record{"id": "1"}))
	assert.False(t, matches(rec, Record{"stock": 10}))

	nested := Record{"tags": []any{"a", "b"}, "meta": map[string]any{"x": 1, "y": 2}}
	assert.True(t, matches(nested, Record{"tags": []any{"b"}}))
	assert.True(t, matches(nested, Record{"meta": map[string]any{"y": 2}}))
	assert.False(t, matches(nested, Record{"tags": "a"}))
	assert.False(t, matches(nested, Record{"meta": map[string]any{"z": 3}}))
}
