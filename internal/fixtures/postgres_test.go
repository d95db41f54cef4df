// internal/fixtures/postgres_test.go
package fixtures

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockPostgres(t *testing.T) (*PostgresDatabase, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.ExpectPing()
	db, err := NewPostgresDatabase(context.Background(), mock, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return db, mock
}

func TestNewPostgresDatabase_PingFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pingErr := errors.New("database unavailable")
	mock.ExpectPing().WillReturnError(pingErr)
	_, err = NewPostgresDatabase(context.Background(), mock, nil)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDatabase_CreateTable(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "users"`)).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "users" (id BIGSERIAL PRIMARY KEY, data JSONB NOT NULL)`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`COMMENT ON TABLE "users" IS '{"email":"string"}'`)).
		WillReturnResult(pgxmock.NewResult("COMMENT", 0))

	require.NoError(t, db.CreateTable(context.Background(), "users", Schema{"email": "string"}))
}

func TestPostgresDatabase_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users" (data) VALUES ($1)`)).
		WithArgs([]byte(`{"email":"a@example.com","id":1}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, db.Insert(ctx, "users", Record{"id": 1, "email": "a@example.com"}))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM "users" WHERE data @> $1 ORDER BY id`)).
		WithArgs([]byte(`{"id":1}`)).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"email":"a@example.com","id":1}`)))
	rows, err := db.Query(ctx, "users", Record{"id": 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a@example.com", rows[0]["email"])
}

func TestPostgresDatabase_MissingTable(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockPostgres(t)
	missing := &pgconn.PgError{Code: undefinedTable, Message: `relation "ghosts" does not exist`}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ghosts"`)).WillReturnError(missing)
	assert.ErrorIs(t, db.Insert(ctx, "ghosts", Record{"id": 1}), ErrNoTable)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM "ghosts"`)).WillReturnError(missing)
	rows, err := db.Query(ctx, "ghosts", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "ghosts"`)).WillReturnError(missing)
	assert.NoError(t, db.DeleteAll(ctx, "ghosts"))

	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "ghosts"`)).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	assert.NoError(t, db.DropTable(ctx, "ghosts"))
}

func TestPostgresDatabase_PropagatesOtherErrors(t *testing.T) {
	db, mock := newMockPostgres(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users"`)).WillReturnError(boom)
	assert.ErrorIs(t, db.DeleteAll(context.Background(), "users"), boom)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'plain'`, quoteLiteral("plain"))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}
