// internal/factories/factory_test.go
package factories

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagekit/internal/fixtures"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Factory {
	return New(
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithIDSource(rand.NewChaCha8([32]byte{7})),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(zaptest.NewLogger(t)),
	)
}

func TestFactory_Deterministic(t *testing.T) {
	a, b := seeded(t), seeded(t)
	if diff := cmp.Diff(a.Users(3, "admin"), b.Users(3, "admin")); diff != "" {
		t.Fatalf("seeded factories diverged (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Order(OrderSpec{}), b.Order(OrderSpec{})); diff != "" {
		t.Fatalf("seeded orders diverged (-a +b):\n%s", diff)
	}
}

func TestFactory_User(t *testing.T) {
	f := seeded(t)
	u := f.User("", "")
	assert.True(t, strings.HasPrefix(u.Email, "user_"))
	assert.True(t, strings.HasSuffix(u.Email, "@"+DefaultEmailDomain))
	assert.Equal(t, "user", u.Role)
	assert.Equal(t, DefaultPassword, u.Password)
	assert.Equal(t, fixedNow, u.CreatedAt)
	assert.True(t, u.IsActive)
	require.NoError(t, f.Validate(u))

	assert.Equal(t, "admin", f.Admin().Role)
	assert.Equal(t, "guest", f.Guest().Role)

	users := New().Users(50, "moderator")
	seen := map[string]bool{}
	for _, u := range users {
		assert.False(t, seen[u.Email], "duplicate email %s", u.Email)
		seen[u.Email] = true
	}
}

func TestFactory_CustomUser(t *testing.T) {
	f := seeded(t)
	u := f.CustomUser("jane.doe@example.com", "CustomPass123", func(u *User) {
		u.FirstName = "Jane"
		u.Role = "admin"
	})
	assert.Equal(t, "jane.doe", u.Username)
	assert.Equal(t, "Jane", u.FirstName)
	assert.Equal(t, "admin", u.Role)
	require.NoError(t, f.Validate(u))

	bad := f.CustomUser("not-an-email", "x")
	assert.Error(t, f.Validate(bad))
}

func TestFactory_Product(t *testing.T) {
	f := seeded(t)
	p := f.Electronics()
	assert.Equal(t, "Electronics", p.Category)
	assert.True(t, strings.HasPrefix(p.SKU, "SKU_"))
	assert.GreaterOrEqual(t, p.Stock, 10)
	assert.LessOrEqual(t, p.Stock, 100)
	assert.GreaterOrEqual(t, p.Price, 10.0)
	require.NoError(t, f.Validate(p))

	out := f.OutOfStock()
	assert.Zero(t, out.Stock)
	assert.False(t, out.InStock)
	assert.Contains(t, Categories, out.Category)

	for _, p := range f.Products(5, "Books") {
		assert.Equal(t, "Books", p.Category)
	}

	custom := f.CustomProduct("SKU-001", "Custom Product", 99.99, func(p *Product) { p.Category = "Home" })
	assert.Equal(t, 50, custom.Stock)
	assert.Equal(t, "Home", custom.Category)
}

func TestFactory_Order(t *testing.T) {
	f := seeded(t)
	o := f.PendingOrder(1, 10)
	assert.Equal(t, 1, o.UserID)
	assert.Equal(t, 10, o.ProductID)
	assert.Equal(t, "pending", o.Status)
	assert.InDelta(t, o.UnitPrice*float64(o.Quantity), o.TotalPrice, 0.005)
	require.NoError(t, f.Validate(o))

	assert.Equal(t, "shipped", f.ShippedOrder(0, 0).Status)
	assert.Equal(t, "delivered", f.DeliveredOrder(0, 0).Status)
	assert.Equal(t, "cancelled", f.CancelledOrder(0, 0).Status)

	for _, o := range f.Orders(4, 7) {
		assert.Equal(t, 7, o.UserID)
	}

	custom := f.CustomOrder("ORD-1", 1, 2, 3, func(o *Order) { o.Status = "bogus" })
	assert.Error(t, f.Validate(custom))
}

func TestFactory_RecordsInsertIntoDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := fixtures.NewMemoryDatabase("factories", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	f := seeded(t)
	require.NoError(t, db.CreateTable(ctx, "users", nil))
	u := f.User("admin", "example.org")
	require.NoError(t, db.Insert(ctx, "users", u.Record()))

	rows, err := db.Query(ctx, "users", fixtures.Record{"email": u.Email})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "admin", rows[0]["role"])
	assert.Equal(t, true, rows[0]["is_active"])
}
