package stock

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larder-pos/larder/internal/shared"
)

// Repository persists stock items in PostgreSQL.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) error
	Delete(ctx context.Context, id int64) error

	QuantityStore
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the postgres-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const itemColumns = `id, name, category, unit, quantity_available, cost, cost_per, supplier_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR category ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM stock_items WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND (name ILIKE $1 OR category ILIKE $1)`
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.QuantityAvailable, &it.Cost, &it.CostPer, &it.SupplierID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE id = $1`
	var it Item
	err := r.db.QueryRow(ctx, query, id).Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.QuantityAvailable, &it.Cost, &it.CostPer, &it.SupplierID, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	query := `INSERT INTO stock_items (name, category, unit, quantity_available, cost, cost_per, supplier_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, item.Name, item.Category, item.Unit, item.QuantityAvailable, item.Cost, item.CostPer, item.SupplierID, now, now).Scan(&item.ID)
	if err != nil {
		return Item{}, err
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) error {
	query := `UPDATE stock_items SET name = $1, category = $2, unit = $3, quantity_available = $4, cost = $5, cost_per = $6, supplier_id = $7, updated_at = $8 WHERE id = $9`
	tag, err := r.db.Exec(ctx, query, item.Name, item.Category, item.Unit, item.QuantityAvailable, item.Cost, item.CostPer, item.SupplierID, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stock_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetQuantity reads the current available quantity for one item.
func (r *repository) GetQuantity(ctx context.Context, id int64) (float64, error) {
	var qty float64
	err := r.db.QueryRow(ctx, `SELECT quantity_available FROM stock_items WHERE id = $1`, id).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return qty, err
}

// CompareAndSwapQuantity writes next only if the stored quantity still
// equals expected. The returned bool reports whether the swap happened.
func (r *repository) CompareAndSwapQuantity(ctx context.Context, id int64, expected, next float64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE stock_items SET quantity_available = $3, updated_at = NOW() WHERE id = $1 AND quantity_available = $2`,
		id, expected, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "category":
		return "category " + dir + ", name ASC"
	case "supplier":
		return "supplier_id " + dir + ", name ASC"
	default:
		return "created_at DESC"
	}
}
