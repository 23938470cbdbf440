package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larder-pos/larder/internal/platform/db"
	"github.com/larder-pos/larder/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Order, int, error)
	Get(ctx context.Context, id int64) (Order, error)
	Create(ctx context.Context, order Order) (Order, error)
	MarkDiscarded(ctx context.Context, id int64) (Order, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, status, date_created FROM orders ORDER BY date_created DESC`
	args := []interface{}{}
	if filters.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, filters.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Status, &o.DateCreated); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		lines, err := r.linesFor(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Lines = lines
	}
	return orders, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.db.QueryRow(ctx, `SELECT id, status, date_created FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Status, &o.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Lines, err = r.linesFor(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// linesFor loads order lines with the product name left-joined; a
// deleted product leaves the name empty rather than breaking the read.
func (r *repository) linesFor(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ol.product_id, COALESCE(p.name, ''), ol.quantity
		FROM order_lines ol
		LEFT JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = $1
		ORDER BY ol.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Create(ctx context.Context, order Order) (Order, error) {
	if order.DateCreated.IsZero() {
		order.DateCreated = time.Now().UTC()
	}
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO orders (status, date_created) VALUES ($1, $2) RETURNING id`,
			order.Status, order.DateCreated).Scan(&order.ID); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if _, err := tx.Exec(ctx, `INSERT INTO order_lines (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
				order.ID, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return r.Get(ctx, order.ID)
}

// MarkDiscarded claims the completed→discarded transition atomically.
// The status predicate in the UPDATE makes the claim a compare-and-swap:
// of any number of concurrent discards, exactly one flips the row.
func (r *repository) MarkDiscarded(ctx context.Context, id int64) (Order, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		StatusDiscarded, id, StatusCompleted)
	if err != nil {
		return Order{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return Order{}, err
		}
		return Order{}, ErrAlreadyDiscarded
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
