package stock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Item models a raw stock item provided by a supplier.
type Item struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Unit              string    `json:"unit"`
	QuantityAvailable float64   `json:"quantity_available"`
	Cost              float64   `json:"cost"`
	CostPer           float64   `json:"cost_per"`
	SupplierID        *int64    `json:"supplier_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CostPerUnit derives the cost of a single unit. Cost is charged per
// CostPer units, so a 5kg bag at 20 gives 4 per kg.
func (i Item) CostPerUnit() float64 {
	if i.CostPer <= 0 {
		return 0
	}
	return i.Cost / i.CostPer
}

// Demand maps stock item IDs to the quantity an operation requires.
// It is produced fresh per operation and never persisted.
type Demand map[int64]DemandLine

// DemandLine carries the per-item requirement with display metadata.
type DemandLine struct {
	Name string
	Unit string
	Qty  float64
}

// Shortfall describes one stock item whose availability cannot cover demand.
type Shortfall struct {
	StockItemID int64   `json:"stock_item_id"`
	Name        string  `json:"name"`
	Available   float64 `json:"available"`
	Needed      float64 `json:"needed"`
}

// InsufficiencyError reports every short item in a reservation, so a
// caller can show one consolidated error instead of resubmitting per item.
type InsufficiencyError struct {
	Shortfalls []Shortfall
}

func (e *InsufficiencyError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%q available %g, needed %g", s.Name, s.Available, s.Needed))
	}
	return "stock: insufficient quantity: " + strings.Join(parts, "; ")
}

// ErrNotFound indicates a missing stock item.
var ErrNotFound = errors.New("stock: item not found")

// ErrContention is returned when a reservation keeps losing the
// compare-and-swap race and exhausts its retry budget. Callers may retry.
var ErrContention = errors.New("stock: reservation contention, retry later")

// ErrInvalidItem indicates a stock item failing validation.
var ErrInvalidItem = errors.New("stock: invalid item")
