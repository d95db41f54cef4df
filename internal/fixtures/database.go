// internal/fixtures/database.go
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/config"
	"github.com/xkilldash9x/pagekit/internal/observability"
)

// ErrNoTable is returned when inserting into a table that was never created.
var ErrNoTable = errors.New("table does not exist")

// Record is one row, keyed by column name.
type Record map[string]any

// Schema maps column names to a free-form type name.
type Schema map[string]string

// Database is the test data store. Query on a missing table returns no
// rows; DeleteAll and DropTable on a missing table are no-ops.
type Database interface {
	CreateTable(ctx context.Context, table string, schema Schema) error
	Insert(ctx context.Context, table string, rec Record) error
	// Query returns the rows that contain filters, in insertion order.
	// Containment follows jsonb @>, so a filter may name a subset of a
	// nested object or some elements of an array column.
	Query(ctx context.Context, table string, filters Record) ([]Record, error)
	DeleteAll(ctx context.Context, table string) error
	DropTable(ctx context.Context, table string) error
	Close() error
}

// OpenDatabase connects to the backend named in cfg. The memory backend runs
// an in-process Redis server owned by the returned Database.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Database, error) {
	logger = observability.OrNop(logger)
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryDatabase(cfg.Name, logger)
	case "redis":
		return DialRedis(ctx, cfg.URL, cfg.Name, logger)
	case "postgres":
		return ConnectPostgres(ctx, cfg.URL, logger)
	}
	return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
}

// matches reports whether rec contains filters with the meaning of the jsonb
// @> operator: objects match on a subset of keys, arrays match when every
// filter element is contained in some element, scalars must be equal. Both
// sides go through JSON first so 1 and 1.0 are equal after a storage round
// trip.
func matches(rec, filters Record) bool {
	if len(filters) == 0 {
		return true
	}
	got, ok := asJSON(rec)
	if !ok {
		return false
	}
	want, ok := asJSON(filters)
	return ok && contains(got, want)
}

func asJSON(v any) (any, bool) {
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func contains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !contains(gv, wv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok {
			return false
		}
		for _, wv := range w {
			if !slices.ContainsFunc(g, func(gv any) bool { return contains(gv, wv) }) {
				return false
			}
		}
		return true
	default:
		return got == want
	}
}

// columns returns schema's column names, sorted, for stable log output.
func columns(s Schema) []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
