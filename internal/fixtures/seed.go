// internal/fixtures/seed.go
package fixtures

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pagekit/internal/observability"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedTable is one table and its initial rows.
type SeedTable struct {
	Name   string   `yaml:"name"`
	Schema Schema   `yaml:"schema"`
	Rows   []Record `yaml:"rows"`
}

// SeedData is the initial content of the test database.
type SeedData struct {
	Tables []SeedTable `yaml:"tables"`
}

// LoadSeed parses seed YAML. A nil or empty input loads the built-in seed.
func LoadSeed(raw []byte) (*SeedData, error) {
	if len(raw) == 0 {
		raw = defaultSeed
	}
	var s SeedData
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	for i, t := range s.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("seed table %d has no name", i)
		}
	}
	return &s, nil
}

// Seed creates every table and inserts its rows. Tables are independent and
// are filled concurrently; rows within a table keep their order. A nil logger
// is allowed here and in Reset and Teardown.
func Seed(ctx context.Context, db Database, data *SeedData, logger *zap.Logger) error {
	logger = observability.OrNop(logger)
	logger.Info("Seeding test data", zap.Int("tables", len(data.Tables)))
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range data.Tables {
		g.Go(func() error {
			if err := db.CreateTable(gctx, t.Name, t.Schema); err != nil {
				return err
			}
			return insertRows(gctx, db, t)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	logger.Info("Test database setup completed")
	return nil
}

// Reset empties every seeded table and re-inserts the seed rows.
func Reset(ctx context.Context, db Database, data *SeedData, logger *zap.Logger) error {
	logger = observability.OrNop(logger)
	logger.Info("Resetting test data")
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range data.Tables {
		g.Go(func() error {
			if err := db.DeleteAll(gctx, t.Name); err != nil {
				return err
			}
			return insertRows(gctx, db, t)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	return nil
}

// Teardown drops the seeded tables in reverse creation order.
func Teardown(ctx context.Context, db Database, data *SeedData, logger *zap.Logger) error {
	logger = observability.OrNop(logger)
	logger.Info("Tearing down test database")
	for i := len(data.Tables) - 1; i >= 0; i-- {
		if err := db.DropTable(ctx, data.Tables[i].Name); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(ctx context.Context, db Database, t SeedTable) error {
	for _, row := range t.Rows {
		if err := db.Insert(ctx, t.Name, row); err != nil {
			return err
		}
	}
	return nil
}
