package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/larder-pos/larder/internal/shared"
	"github.com/larder-pos/larder/internal/stock"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
	getCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	r.getCalls++
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	r.nextID++
	product.ID = r.nextID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	product.ID = id
	r.products[id] = product
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.products, id)
	return nil
}

type memoryStock struct {
	items map[int64]stock.Item
}

func (s *memoryStock) Get(ctx context.Context, id int64) (stock.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return stock.Item{}, stock.ErrNotFound
	}
	return item, nil
}

func TestCreateRejectsProductWithoutIngredients(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryStock{items: map[int64]stock.Item{}}, nil)

	_, err := svc.Create(context.Background(), Product{Name: "Empty"})
	require.ErrorIs(t, err, ErrInvalidProduct)
}

func TestCreateRejectsUnknownStockItem(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryStock{items: map[int64]stock.Item{}}, nil)

	_, err := svc.Create(context.Background(), Product{
		Name:        "Latte",
		Ingredients: []Ingredient{{StockItemID: 42, Unit: "kg", QuantityRequired: 0.02}},
	})
	require.ErrorIs(t, err, ErrUnknownStockItem)
}

func TestCreateAndGet(t *testing.T) {
	stockItems := &memoryStock{items: map[int64]stock.Item{
		1: {ID: 1, Name: "Coffee beans", Unit: "kg", Cost: 20, CostPer: 1},
	}}
	svc := NewService(newMemoryRepo(), stockItems, nil)

	created, err := svc.Create(context.Background(), Product{
		Name:        "Espresso",
		Ingredients: []Ingredient{{StockItemID: 1, Unit: "kg", QuantityRequired: 0.02}},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Espresso", got.Name)
}

func TestDerivedProductCost(t *testing.T) {
	beans := &stock.Item{ID: 1, Name: "Coffee beans", Cost: 20, CostPer: 1}
	milk := &stock.Item{ID: 2, Name: "Milk", Cost: 3, CostPer: 2}

	p := Product{Ingredients: []Ingredient{
		{StockItemID: 1, QuantityRequired: 0.02, StockItem: beans},
		{StockItemID: 2, QuantityRequired: 0.3, StockItem: milk},
		{StockItemID: 3, QuantityRequired: 1}, // dangling reference contributes nothing
	}}
	require.InDelta(t, 0.02*20+0.3*1.5, p.Cost(), 1e-9)
}
