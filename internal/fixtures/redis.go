// internal/fixtures/redis.go
package fixtures

import (
	"context"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
)

const keyPrefix = "pagekit"

// RedisDatabase stores tables in Redis. The table set, each table's schema
// hash and its row list live under keys namespaced by the database name.
type RedisDatabase struct {
	name   string
	client *redis.Client
	server *miniredis.Miniredis // set when this database owns an in-process server
	log    *zap.Logger
}

var _ Database = (*RedisDatabase)(nil)

// NewMemoryDatabase starts an in-process Redis server and connects to it.
func NewMemoryDatabase(name string, logger *zap.Logger) (*RedisDatabase, error) {
	srv, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start in-memory redis: %w", err)
	}
	db := newRedisDatabase(name, redis.NewClient(&redis.Options{Addr: srv.Addr()}), logger)
	db.server = srv
	db.log.Info("Database initialized", zap.String("backend", "memory"), zap.String("addr", srv.Addr()))
	return db, nil
}

// DialRedis connects to an existing Redis at url (redis://host:port/db).
func DialRedis(ctx context.Context, url, name string, logger *zap.Logger) (*RedisDatabase, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	db := newRedisDatabase(name, client, logger)
	db.log.Info("Database initialized", zap.String("backend", "redis"), zap.String("addr", opts.Addr))
	return db, nil
}

func newRedisDatabase(name string, client *redis.Client, logger *zap.Logger) *RedisDatabase {
	if name == "" {
		name = "test"
	}
	return &RedisDatabase{
		name:   name,
		client: client,
		log:    observability.OrNop(logger).Named("db").With(zap.String("db", name)),
	}
}

func (r *RedisDatabase) tablesKey() string         { return fmt.Sprintf("%s:%s:tables", keyPrefix, r.name) }
func (r *RedisDatabase) schemaKey(t string) string { return fmt.Sprintf("%s:%s:schema:%s", keyPrefix, r.name, t) }
func (r *RedisDatabase) rowsKey(t string) string   { return fmt.Sprintf("%s:%s:rows:%s", keyPrefix, r.name, t) }

func (r *RedisDatabase) exists(ctx context.Context, table string) (bool, error) {
	return r.client.SIsMember(ctx, r.tablesKey(), table).Result()
}

// CreateTable creates table, replacing any existing table of that name.
func (r *RedisDatabase) CreateTable(ctx context.Context, table string, schema Schema) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, r.tablesKey(), table)
		p.Del(ctx, r.schemaKey(table), r.rowsKey(table))
		if len(schema) > 0 {
			fields := make(map[string]any, len(schema))
			for c, typ := range schema {
				fields[c] = typ
			}
			p.HSet(ctx, r.schemaKey(table), fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	r.log.Info("Table created", zap.String("table", table), zap.Strings("columns", columns(schema)))
	return nil
}

func (r *RedisDatabase) Insert(ctx context.Context, table string, rec Record) error {
	ok, err := r.exists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", table, err)
	}
	if err := r.client.RPush(ctx, r.rowsKey(table), raw).Err(); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	r.log.Debug("Inserted record", zap.String("table", table), zap.Any("record", rec))
	return nil
}

func (r *RedisDatabase) Query(ctx context.Context, table string, filters Record) ([]Record, error) {
	raw, err := r.client.LRange(ctx, r.rowsKey(table), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	var out []Record
	for _, s := range raw {
		var rec Record
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(s, &rec); err != nil {
			return nil, fmt.Errorf("corrupt record in %s: %w", table, err)
		}
		if matches(rec, filters) {
			out = append(out, rec)
		}
	}
	r.log.Debug("Query", zap.String("table", table), zap.Int("found", len(out)))
	return out, nil
}

func (r *RedisDatabase) DeleteAll(ctx context.Context, table string) error {
	if err := r.client.Del(ctx, r.rowsKey(table)).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	r.log.Info("Cleared table", zap.String("table", table))
	return nil
}

func (r *RedisDatabase) DropTable(ctx context.Context, table string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, r.tablesKey(), table)
		p.Del(ctx, r.schemaKey(table), r.rowsKey(table))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	r.log.Info("Table dropped", zap.String("table", table))
	return nil
}

// Schema returns the stored schema of table, or nil if it does not exist.
func (r *RedisDatabase) Schema(ctx context.Context, table string) (Schema, error) {
	fields, err := r.client.HGetAll(ctx, r.schemaKey(table)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return Schema(fields), nil
}

func (r *RedisDatabase) Close() error {
	err := r.client.Close()
	if r.server != nil {
		r.server.Close()
	}
	r.log.Info("Database closed")
	return err
}
