package stock

import (
	"context"
	"fmt"

	"github.com/larder-pos/larder/internal/shared"
)

// Service coordinates stock item CRUD. Quantity changes caused by order
// activity never go through here; they belong to the Ledger.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

// Update replaces the item, including a manual quantity correction. The
// schema's non-negative check still applies, and any in-flight
// reservation simply re-reads the new value on its next attempt.
func (s *Service) Update(ctx context.Context, id int64, item Item) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	if err := validate(item); err != nil {
		return Item{}, err
	}
	if err := s.repo.Update(ctx, id, item); err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func validate(item Item) error {
	if item.Name == "" || item.Category == "" || item.Unit == "" {
		return fmt.Errorf("%w: name, category and unit are required", ErrInvalidItem)
	}
	if item.QuantityAvailable < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidItem)
	}
	if item.Cost < 0 {
		return fmt.Errorf("%w: cost cannot be negative", ErrInvalidItem)
	}
	if item.CostPer < 0.01 {
		return fmt.Errorf("%w: cost per must be at least 0.01", ErrInvalidItem)
	}
	return nil
}
