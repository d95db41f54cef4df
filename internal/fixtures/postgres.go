// internal/fixtures/postgres.go
package fixtures

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
)

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresDatabase keeps each table as (id bigserial, data jsonb). Filters
// use jsonb containment, so equality follows JSON semantics.
type PostgresDatabase struct {
	pool DBPool
	log  *zap.Logger
}

var _ Database = (*PostgresDatabase)(nil)

// ConnectPostgres opens a pool to url and verifies it.
func ConnectPostgres(ctx context.Context, url string, logger *zap.Logger) (*PostgresDatabase, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	db, err := NewPostgresDatabase(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgresDatabase wraps an existing pool after pinging it.
func NewPostgresDatabase(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresDatabase, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db := &PostgresDatabase{pool: pool, log: observability.OrNop(logger).Named("db")}
	db.log.Info("Database initialized", zap.String("backend", "postgres"))
	return db, nil
}

func ident(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// CreateTable creates table, replacing any existing table of that name. The
// schema is recorded as a table comment.
func (p *PostgresDatabase) CreateTable(ctx context.Context, table string, schema Schema) error {
	t := ident(table)
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	if _, err := p.pool.Exec(ctx, "CREATE TABLE "+t+" (id BIGSERIAL PRIMARY KEY, data JSONB NOT NULL)"); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	comment, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema for %s: %w", table, err)
	}
	if _, err := p.pool.Exec(ctx, "COMMENT ON TABLE "+t+" IS "+quoteLiteral(comment)); err != nil {
		return fmt.Errorf("failed to record schema for %s: %w", table, err)
	}
	p.log.Info("Table created", zap.String("table", table), zap.Strings("columns", columns(schema)))
	return nil
}

// quoteLiteral renders s as a SQL string literal. COMMENT does not accept
// bind parameters.
func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}

func (p *PostgresDatabase) Insert(ctx context.Context, table string, rec Record) error {
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", table, err)
	}
	if _, err := p.pool.Exec(ctx, "INSERT INTO "+ident(table)+" (data) VALUES ($1)", raw); err != nil {
		if isUndefinedTable(err) {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	p.log.Debug("Inserted record", zap.String("table", table), zap.Any("record", rec))
	return nil
}

func (p *PostgresDatabase) Query(ctx context.Context, table string, filters Record) ([]Record, error) {
	if filters == nil {
		filters = Record{}
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}
	rows, err := p.pool.Query(ctx, "SELECT data FROM "+ident(table)+" WHERE data @> $1 ORDER BY id", raw)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		var rec Record
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("corrupt record in %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s rows: %w", table, err)
	}
	p.log.Debug("Query", zap.String("table", table), zap.Int("found", len(out)))
	return out, nil
}

func (p *PostgresDatabase) DeleteAll(ctx context.Context, table string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM "+ident(table)); err != nil && !isUndefinedTable(err) {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	p.log.Info("Cleared table", zap.String("table", table))
	return nil
}

func (p *PostgresDatabase) DropTable(ctx context.Context, table string) error {
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+ident(table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	p.log.Info("Table dropped", zap.String("table", table))
	return nil
}

func (p *PostgresDatabase) Close() error {
	p.pool.Close()
	p.log.Info("Database closed")
	return nil
}
