package orders

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larder-pos/larder/internal/catalog"
	"github.com/larder-pos/larder/internal/stock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func beansItem() *stock.Item { return &stock.Item{ID: 1, Name: "Coffee beans", Unit: "kg"} }
func milkItem() *stock.Item  { return &stock.Item{ID: 2, Name: "Milk", Unit: "l"} }

func espresso() catalog.Product {
	return catalog.Product{ID: 10, Name: "Espresso", Ingredients: []catalog.Ingredient{
		{StockItemID: 1, Unit: "kg", QuantityRequired: 0.02, StockItem: beansItem()},
	}}
}

func latte() catalog.Product {
	return catalog.Product{ID: 11, Name: "Latte", Ingredients: []catalog.Ingredient{
		{StockItemID: 1, Unit: "kg", QuantityRequired: 0.02, StockItem: beansItem()},
		{StockItemID: 2, Unit: "l", QuantityRequired: 0.3, StockItem: milkItem()},
	}}
}

func TestAggregateMergesDuplicateStockItems(t *testing.T) {
	lines := []resolvedLine{
		{Product: espresso(), Quantity: 2},
		{Product: latte(), Quantity: 3},
	}

	demand, err := aggregateDemand(lines)
	require.NoError(t, err)
	require.Len(t, demand, 2)
	require.InDelta(t, 0.02*2+0.02*3, demand[1].Qty, 1e-9)
	require.InDelta(t, 0.3*3, demand[2].Qty, 1e-9)
	require.Equal(t, "Coffee beans", demand[1].Name)
	require.Equal(t, "kg", demand[1].Unit)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	forward := []resolvedLine{{Product: espresso(), Quantity: 2}, {Product: latte(), Quantity: 3}}
	backward := []resolvedLine{{Product: latte(), Quantity: 3}, {Product: espresso(), Quantity: 2}}

	a, err := aggregateDemand(forward)
	require.NoError(t, err)
	b, err := aggregateDemand(backward)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestAggregateRejectsProductWithoutIngredients(t *testing.T) {
	lines := []resolvedLine{
		{Product: espresso(), Quantity: 1},
		{Product: catalog.Product{ID: 12, Name: "Empty"}, Quantity: 1},
	}

	_, err := aggregateDemand(lines)
	require.ErrorIs(t, err, ErrProductNoIngredients)
}

func TestAggregateRejectsDanglingStockReference(t *testing.T) {
	dangling := catalog.Product{ID: 13, Name: "Broken", Ingredients: []catalog.Ingredient{
		{StockItemID: 99, Unit: "kg", QuantityRequired: 1}, // StockItem nil: deleted since
	}}

	_, err := aggregateDemand([]resolvedLine{{Product: dangling, Quantity: 1}})
	require.ErrorIs(t, err, ErrDanglingIngredient)
}

func TestAggregateTolerantSkipsBrokenLines(t *testing.T) {
	dangling := catalog.Product{ID: 13, Name: "Broken", Ingredients: []catalog.Ingredient{
		{StockItemID: 99, Unit: "kg", QuantityRequired: 1},
		{StockItemID: 2, Unit: "l", QuantityRequired: 0.5, StockItem: milkItem()},
	}}
	lines := []resolvedLine{
		{Product: catalog.Product{ID: 12, Name: "Empty"}, Quantity: 4},
		{Product: dangling, Quantity: 2},
		{Product: espresso(), Quantity: 1},
	}

	demand := aggregateTolerant(discardLogger(), lines)
	require.Len(t, demand, 2)
	require.InDelta(t, 0.02, demand[1].Qty, 1e-9)
	require.InDelta(t, 1.0, demand[2].Qty, 1e-9)
}
