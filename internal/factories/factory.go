// internal/factories/factory.go
package factories

import (
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/observability"
	"github.com/xkilldash9x/pagekit/internal/validate"
)

// Factory builds unique test records. It is safe for concurrent use.
type Factory struct {
	mu   sync.Mutex
	rng  *rand.Rand
	ids  io.Reader
	now  func() time.Time
	log  *zap.Logger
	vals *validate.Validator
}

// Option configures a Factory.
type Option func(*Factory)

// WithRand fixes the random source, for reproducible data.
func WithRand(r *rand.Rand) Option {
	return func(f *Factory) { f.rng = r }
}

// WithIDSource draws UUID bytes from r instead of crypto/rand.
func WithIDSource(r io.Reader) Option {
	return func(f *Factory) { f.ids = r }
}

func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) { f.log = observability.OrNop(l).Named("factory") }
}

// New returns a Factory seeded from the runtime's random source.
func New(opts ...Option) *Factory {
	f := &Factory{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.vals = validate.New(f.log)
	return f
}

// Validate checks a built record against its validation tags.
func (f *Factory) Validate(v any) error {
	return f.vals.Struct(v)
}

// shortID returns the first n hex characters of a fresh UUID.
func (f *Factory) shortID(n int) string {
	var id uuid.UUID
	if f.ids != nil {
		id = uuid.Must(uuid.NewRandomFromReader(f.ids))
	} else {
		id = uuid.New()
	}
	return id.String()[:n]
}

// intRange returns a value in [lo, hi].
func (f *Factory) intRange(lo, hi int) int {
	return lo + f.rng.IntN(hi-lo+1)
}

// floatRange returns a value in [lo, hi) rounded to places decimals.
func (f *Factory) floatRange(lo, hi float64, places int) float64 {
	return round(lo+f.rng.Float64()*(hi-lo), places)
}

func (f *Factory) pick(options []string) string {
	return options[f.rng.IntN(len(options))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
