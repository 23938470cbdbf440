package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/larder-pos/larder/internal/shared"
	"github.com/larder-pos/larder/internal/stock"
)

// StockChecker verifies that referenced stock items exist.
type StockChecker interface {
	Get(ctx context.Context, id int64) (stock.Item, error)
}

// Service coordinates product catalog operations. Get doubles as the
// product gateway for order fulfillment.
type Service struct {
	repo  Repository
	stock StockChecker
	cache *ProductCache
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, stockChecker StockChecker, cache *ProductCache) *Service {
	return &Service{repo: repo, stock: stockChecker, cache: cache}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	if p, ok := s.cache.Get(ctx, id); ok {
		return p, nil
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	s.cache.Set(ctx, p)
	return p, nil
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(ctx, product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	if err := s.validate(ctx, product); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return Product{}, err
	}
	s.cache.Invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// validate enforces the product invariants: a name, at least one
// ingredient, non-negative requirements, and every referenced stock
// item present at creation time. References may still dangle later if
// the stock item is deleted; readers handle that.
func (s *Service) validate(ctx context.Context, product Product) error {
	if product.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if len(product.Ingredients) == 0 {
		return fmt.Errorf("%w: product must have at least one ingredient", ErrInvalidProduct)
	}
	for _, ing := range product.Ingredients {
		if ing.QuantityRequired < 0 {
			return fmt.Errorf("%w: ingredient quantity cannot be negative", ErrInvalidProduct)
		}
		if _, err := s.stock.Get(ctx, ing.StockItemID); err != nil {
			if errors.Is(err, stock.ErrNotFound) {
				return fmt.Errorf("%w: stock item %d", ErrUnknownStockItem, ing.StockItemID)
			}
			return fmt.Errorf("verify stock item %d: %w", ing.StockItemID, err)
		}
	}
	return nil
}
