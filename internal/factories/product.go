// internal/factories/product.go
package factories

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagekit/internal/fixtures"
)

// Categories are the product categories the factory draws from.
var Categories = []string{"Electronics", "Clothing", "Books", "Sports", "Home", "Beauty"}

type Product struct {
	SKU         string    `json:"sku" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price" validate:"gt=0"`
	Category    string    `json:"category,omitempty"`
	Stock       int       `json:"stock" validate:"gte=0"`
	InStock     bool      `json:"in_stock"`
	Rating      float64   `json:"rating" validate:"gte=0,lte=5"`
	Reviews     int       `json:"reviews" validate:"gte=0"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Product) Record() fixtures.Record {
	return fixtures.Record{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"category":    p.Category,
		"stock":       p.Stock,
		"in_stock":    p.InStock,
		"rating":      p.Rating,
		"reviews":     p.Reviews,
		"created_at":  p.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Product builds a unique product. An empty category picks one at random.
// Out of stock products have zero stock.
func (f *Factory) Product(category string, inStock bool) Product {
	f.mu.Lock()
	id := f.shortID(6)
	n := f.intRange(1000, 9999)
	if category == "" {
		category = f.pick(Categories)
	}
	stock := 0
	if inStock {
		stock = f.intRange(10, 100)
	}
	p := Product{
		SKU:         "SKU_" + id,
		Name:        fmt.Sprintf("Product_%d", n),
		Description: fmt.Sprintf("Test product %d", n),
		Price:       f.floatRange(10, 1000, 2),
		Category:    category,
		Stock:       stock,
		InStock:     inStock,
		Rating:      f.floatRange(1, 5, 1),
		Reviews:     f.intRange(0, 100),
		CreatedAt:   f.now(),
	}
	f.mu.Unlock()
	f.log.Info("Created product", zap.String("sku", p.SKU), zap.String("name", p.Name))
	return p
}

func (f *Factory) Electronics() Product { return f.Product("Electronics", true) }
func (f *Factory) OutOfStock() Product  { return f.Product("", false) }

func (f *Factory) Products(count int, category string) []Product {
	out := make([]Product, 0, count)
	for range count {
		out = append(out, f.Product(category, true))
	}
	f.log.Info("Created batch of products", zap.Int("count", count))
	return out
}

// CustomProduct builds an in-stock product with the given identity.
func (f *Factory) CustomProduct(sku, name string, price float64, mods ...func(*Product)) Product {
	p := Product{SKU: sku, Name: name, Price: price, Stock: 50, InStock: true, CreatedAt: f.now()}
	for _, mod := range mods {
		mod(&p)
	}
	f.log.Info("Created custom product", zap.String("sku", sku))
	return p
}
