package suppliers

import (
	"context"
	"fmt"

	"github.com/larder-pos/larder/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	if err := validate(supplier); err != nil {
		return Supplier{}, err
	}
	if err := s.repo.Update(ctx, id, supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func validate(supplier Supplier) error {
	if supplier.Name == "" || supplier.Address == "" || supplier.Phone == "" {
		return fmt.Errorf("%w: name, address and phone are required", ErrInvalidSupplier)
	}
	return nil
}
