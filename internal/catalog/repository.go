package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larder-pos/larder/internal/platform/db"
	"github.com/larder-pos/larder/internal/shared"
	"github.com/larder-pos/larder/internal/stock"
)

// Repository persists products and their ingredient lists in PostgreSQL.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT id, name, created_at, updated_at FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND name ILIKE $1`
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`

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

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range products {
		ingredients, err := r.ingredientsFor(ctx, products[i].ID)
		if err != nil {
			return nil, 0, err
		}
		products[i].Ingredients = ingredients
	}
	return products, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	p.Ingredients, err = r.ingredientsFor(ctx, id)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// ingredientsFor loads the ingredient list with the referenced stock
// item left-joined, so deleted stock items surface as nil StockItem
// instead of breaking the read.
func (r *repository) ingredientsFor(ctx context.Context, productID int64) ([]Ingredient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pi.stock_item_id, pi.unit, pi.quantity_required,
		       s.id, s.name, s.category, s.unit, s.quantity_available, s.cost, s.cost_per, s.supplier_id, s.created_at, s.updated_at
		FROM product_ingredients pi
		LEFT JOIN stock_items s ON s.id = pi.stock_item_id
		WHERE pi.product_id = $1
		ORDER BY pi.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []Ingredient
	for rows.Next() {
		var (
			ing       Ingredient
			itemID    *int64
			name      *string
			category  *string
			unit      *string
			qty       *float64
			cost      *float64
			costPer   *float64
			supplier  *int64
			createdAt *time.Time
			updatedAt *time.Time
		)
		if err := rows.Scan(&ing.StockItemID, &ing.Unit, &ing.QuantityRequired,
			&itemID, &name, &category, &unit, &qty, &cost, &costPer, &supplier, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if itemID != nil {
			ing.StockItem = &stock.Item{
				ID:                *itemID,
				Name:              *name,
				Category:          *category,
				Unit:              *unit,
				QuantityAvailable: *qty,
				Cost:              *cost,
				CostPer:           *costPer,
				SupplierID:        supplier,
				CreatedAt:         *createdAt,
				UpdatedAt:         *updatedAt,
			}
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO products (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
			product.Name, now, now).Scan(&product.ID); err != nil {
			return err
		}
		return insertIngredients(ctx, tx, product.ID, product.Ingredients)
	})
	if err != nil {
		return Product{}, err
	}
	return r.Get(ctx, product.ID)
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE products SET name = $1, updated_at = $2 WHERE id = $3`, product.Name, time.Now(), id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_ingredients WHERE product_id = $1`, id); err != nil {
			return err
		}
		return insertIngredients(ctx, tx, id, product.Ingredients)
	})
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM product_ingredients WHERE product_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func insertIngredients(ctx context.Context, tx pgx.Tx, productID int64, ingredients []Ingredient) error {
	for _, ing := range ingredients {
		if _, err := tx.Exec(ctx,
			`INSERT INTO product_ingredients (product_id, stock_item_id, unit, quantity_required) VALUES ($1, $2, $3, $4)`,
			productID, ing.StockItemID, ing.Unit, ing.QuantityRequired); err != nil {
			return err
		}
	}
	return nil
}
