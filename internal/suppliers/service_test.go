package suppliers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larder-pos/larder/internal/shared"
)

type memoryRepo struct {
	suppliers map[int64]Supplier
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{suppliers: make(map[int64]Supplier)}
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	out := make([]Supplier, 0, len(r.suppliers))
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	r.nextID++
	supplier.ID = r.nextID
	r.suppliers[supplier.ID] = supplier
	return supplier, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, supplier Supplier) error {
	if _, ok := r.suppliers[id]; !ok {
		return ErrNotFound
	}
	supplier.ID = id
	r.suppliers[id] = supplier
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.suppliers[id]; !ok {
		return ErrNotFound
	}
	delete(r.suppliers, id)
	return nil
}

func TestCreateRequiresAllFields(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Supplier{Name: "Harbor Roasters"})
	require.ErrorIs(t, err, ErrInvalidSupplier)

	created, err := svc.Create(context.Background(), Supplier{
		Name:    "Harbor Roasters",
		Address: "14 Dock Street",
		Phone:   "+44 20 7946 0321",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestUpdateUnknownSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Update(context.Background(), 7, Supplier{
		Name:    "Greenfield Dairy",
		Address: "Low Farm",
		Phone:   "+44 1292 555014",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo())

	created, err := svc.Create(context.Background(), Supplier{
		Name:    "Borough Produce",
		Address: "8 Stoney Street",
		Phone:   "+44 20 7946 0958",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
