package orders

import (
	"errors"
	"time"
)

// Status enumerates the order lifecycle. The only legal transition is
// completed -> discarded, and it is one-way.
type Status string

const (
	// StatusCompleted is the state of a freshly placed order whose
	// stock has been reserved.
	StatusCompleted Status = "completed"
	// StatusDiscarded marks an order whose stock has been returned.
	StatusDiscarded Status = "discarded"
)

// Order models a placed order.
type Order struct {
	ID          int64     `json:"id"`
	Status      Status    `json:"status"`
	Lines       []Line    `json:"lines"`
	DateCreated time.Time `json:"date_created"`
}

// Line is one (product, quantity) entry of an order. ProductName is
// resolved at read time for display and may be empty when the product
// has been deleted since.
type Line struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int64  `json:"quantity"`
}

var (
	// ErrInvalidRequest indicates malformed placement input.
	ErrInvalidRequest = errors.New("orders: invalid request")
	// ErrNotFound indicates a missing order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrProductNotFound indicates an order line referencing an unknown product.
	ErrProductNotFound = errors.New("orders: product not found")
	// ErrProductNoIngredients indicates a product with an empty
	// ingredient list during fulfillment. Aggregation halts rather than
	// returning a partial map that could read as "no deduction needed".
	ErrProductNoIngredients = errors.New("orders: product has no ingredients")
	// ErrDanglingIngredient indicates an ingredient whose stock item no
	// longer exists, fatal during fulfillment only.
	ErrDanglingIngredient = errors.New("orders: ingredient references missing stock item")
	// ErrAlreadyDiscarded rejects a second discard of the same order.
	ErrAlreadyDiscarded = errors.New("orders: order already discarded")
	// ErrNotDiscarded gates deletion: stock must have been returned first.
	ErrNotDiscarded = errors.New("orders: order must be discarded before deletion")
	// ErrInconsistent flags stock decremented with no persisted order
	// and no successful compensating release. Operator intervention is
	// required; retrying cannot help.
	ErrInconsistent = errors.New("orders: stock reserved without persisted order, manual reconciliation required")
)
