package suppliers

import (
	"errors"
	"time"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrNotFound indicates a missing supplier.
var ErrNotFound = errors.New("suppliers: not found")

// ErrInvalidSupplier indicates a supplier failing validation.
var ErrInvalidSupplier = errors.New("suppliers: invalid supplier")
