package catalog

import (
	"errors"
	"time"

	"github.com/larder-pos/larder/internal/stock"
)

// Product is a sellable item composed of stock-item ingredients in
// fixed quantities. Its cost is derived from ingredient costs, never
// stored.
type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Ingredient ties a product to a stock item requirement. StockItem is
// the row resolved at read time and is nil when the referenced item has
// been deleted since; callers decide whether a dangling reference is an
// error or a skip.
type Ingredient struct {
	StockItemID      int64       `json:"stock_item_id"`
	Unit             string      `json:"unit"`
	QuantityRequired float64     `json:"quantity_required"`
	StockItem        *stock.Item `json:"stock_item,omitempty"`
}

// Cost sums quantity-weighted per-unit costs over resolved ingredients.
func (p Product) Cost() float64 {
	var total float64
	for _, ing := range p.Ingredients {
		if ing.StockItem == nil {
			continue
		}
		total += ing.QuantityRequired * ing.StockItem.CostPerUnit()
	}
	return total
}

// ErrNotFound indicates a missing product.
var ErrNotFound = errors.New("catalog: product not found")

// ErrInvalidProduct indicates a product failing validation.
var ErrInvalidProduct = errors.New("catalog: invalid product")

// ErrUnknownStockItem indicates an ingredient referencing a stock item
// that does not exist.
var ErrUnknownStockItem = errors.New("catalog: ingredient references unknown stock item")
