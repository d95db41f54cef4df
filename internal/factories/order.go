// internal/factories/order.go
package factories

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/fixtures"
)

var (
	OrderStatuses  = []string{"pending", "processing", "shipped", "delivered", "cancelled"}
	PaymentMethods = []string{"credit_card", "paypal", "bank_transfer"}
)

type Order struct {
	OrderID         string    `json:"order_id" validate:"required"`
	UserID          int       `json:"user_id" validate:"gt=0"`
	ProductID       int       `json:"product_id" validate:"gt=0"`
	Quantity        int       `json:"quantity" validate:"gt=0"`
	UnitPrice       float64   `json:"unit_price" validate:"gte=0"`
	TotalPrice      float64   `json:"total_price" validate:"gte=0"`
	Status          string    `json:"status" validate:"oneof=pending processing shipped delivered cancelled"`
	ShippingAddress string    `json:"shipping_address,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty" validate:"omitempty,oneof=credit_card paypal bank_transfer"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (o Order) Record() fixtures.Record {
	return fixtures.Record{
		"order_id":         o.OrderID,
		"user_id":          o.UserID,
		"product_id":       o.ProductID,
		"quantity":         o.Quantity,
		"unit_price":       o.UnitPrice,
		"total_price":      o.TotalPrice,
		"status":           o.Status,
		"shipping_address": o.ShippingAddress,
		"payment_method":   o.PaymentMethod,
		"created_at":       o.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       o.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// OrderSpec fixes some order fields; zero values are drawn at random.
type OrderSpec struct {
	UserID    int
	ProductID int
	Quantity  int
	Status    string
}

// Order builds a unique order. The total is unit price times quantity,
// rounded to cents.
func (f *Factory) Order(spec OrderSpec) Order {
	f.mu.Lock()
	if spec.UserID == 0 {
		spec.UserID = f.intRange(1, 100)
	}
	if spec.ProductID == 0 {
		spec.ProductID = f.intRange(1, 50)
	}
	if spec.Quantity == 0 {
		spec.Quantity = f.intRange(1, 10)
	}
	if spec.Status == "" {
		spec.Status = f.pick(OrderStatuses)
	}
	unit := f.floatRange(10, 500, 2)
	now := f.now()
	o := Order{
		OrderID:         "ORD_" + f.shortID(6),
		UserID:          spec.UserID,
		ProductID:       spec.ProductID,
		Quantity:        spec.Quantity,
		UnitPrice:       unit,
		TotalPrice:      round(unit*float64(spec.Quantity), 2),
		Status:          spec.Status,
		ShippingAddress: fmt.Sprintf("123 Main St, City %d", f.intRange(1000, 9999)),
		PaymentMethod:   f.pick(PaymentMethods),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.mu.Unlock()
	f.log.Info("Created order", zap.String("order_id", o.OrderID), zap.Int("user_id", o.UserID), zap.Int("quantity", o.Quantity))
	return o
}

func (f *Factory) PendingOrder(userID, productID int) Order {
	return f.Order(OrderSpec{UserID: userID, ProductID: productID, Status: "pending"})
}

func (f *Factory) ShippedOrder(userID, productID int) Order {
	return f.Order(OrderSpec{UserID: userID, ProductID: productID, Status: "shipped"})
}

func (f *Factory) DeliveredOrder(userID, productID int) Order {
	return f.Order(OrderSpec{UserID: userID, ProductID: productID, Status: "delivered"})
}

func (f *Factory) CancelledOrder(userID, productID int) Order {
	return f.Order(OrderSpec{UserID: userID, ProductID: productID, Status: "cancelled"})
}

// Orders builds count orders; a zero userID draws one per order.
func (f *Factory) Orders(count, userID int) []Order {
	out := make([]Order, 0, count)
	for range count {
		out = append(out, f.Order(OrderSpec{UserID: userID}))
	}
	f.log.Info("Created batch of orders", zap.Int("count", count), zap.Int("user_id", userID))
	return out
}

// CustomOrder builds an order with explicit identity and quantity.
func (f *Factory) CustomOrder(orderID string, userID, productID, quantity int, mods ...func(*Order)) Order {
	now := f.now()
	o := Order{
		OrderID:   orderID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, mod := range mods {
		mod(&o)
	}
	f.log.Info("Created custom order", zap.String("order_id", orderID))
	return o
}
