package orders

import (
	"fmt"
	"log/slog"

	"github.com/larder-pos/larder/internal/catalog"
	"github.com/larder-pos/larder/internal/stock"
)

// resolvedLine pairs a resolved product with its requested quantity.
type resolvedLine struct {
	Product  catalog.Product
	Quantity int64
}

// aggregateDemand merges per-ingredient requirements across lines into
// a single Demand. The merge is commutative, so duplicate stock items
// across different products accumulate into one entry regardless of
// line order. Strict: a product without ingredients or with a dangling
// stock reference aborts the whole aggregation, because fulfillment
// must never under-aggregate.
func aggregateDemand(lines []resolvedLine) (stock.Demand, error) {
	demand := make(stock.Demand)
	for _, line := range lines {
		if len(line.Product.Ingredients) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrProductNoIngredients, line.Product.Name)
		}
		for _, ing := range line.Product.Ingredients {
			if ing.StockItem == nil {
				return nil, fmt.Errorf("%w: product %q, stock item %d", ErrDanglingIngredient, line.Product.Name, ing.StockItemID)
			}
			entry := demand[ing.StockItemID]
			entry.Name = ing.StockItem.Name
			entry.Unit = ing.Unit
			entry.Qty += ing.QuantityRequired * float64(line.Quantity)
			demand[ing.StockItemID] = entry
		}
	}
	return demand, nil
}

// aggregateTolerant is the reversal-side variant: products without
// ingredients and dangling stock references are skipped with a warning
// instead of failing, so a discard always returns whatever stock it
// safely can.
func aggregateTolerant(logger *slog.Logger, lines []resolvedLine) stock.Demand {
	demand := make(stock.Demand)
	for _, line := range lines {
		if len(line.Product.Ingredients) == 0 {
			logger.Warn("product has no ingredients, skipping on reversal",
				slog.Int64("product_id", line.Product.ID),
				slog.String("product", line.Product.Name))
			continue
		}
		for _, ing := range line.Product.Ingredients {
			if ing.StockItem == nil {
				logger.Warn("stock item missing, skipping ingredient on reversal",
					slog.Int64("product_id", line.Product.ID),
					slog.Int64("stock_item_id", ing.StockItemID))
				continue
			}
			entry := demand[ing.StockItemID]
			entry.Name = ing.StockItem.Name
			entry.Unit = ing.Unit
			entry.Qty += ing.QuantityRequired * float64(line.Quantity)
			demand[ing.StockItemID] = entry
		}
	}
	return demand
}
