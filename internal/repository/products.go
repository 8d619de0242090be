package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
)

const productColumns = `
	id,
	name,
	description,
	retail_price,
	sell_price,
	quantity,
	archived_at,
	created_at,
	updated_at
`

func (r *Repository) ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
	`
	args := []any{search}
	argIndex := 2
	if !filter.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	if filter.LowStock != nil {
		query += fmt.Sprintf(" AND quantity <= $%d", argIndex)
		args = append(args, *filter.LowStock)
		argIndex++
	}
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return getProduct(ctx, r.pool, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *Repository) CreateProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error) {
	return insertProduct(ctx, r.pool, input)
}

func (r *Repository) PatchProduct(ctx context.Context, id int64, input ProductPatchInput) (domain.Product, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if input.Name != nil {
		add("name", strings.TrimSpace(*input.Name))
	}
	if input.Description != nil {
		add("description", strings.TrimSpace(*input.Description))
	}
	if input.RetailPrice != nil {
		add("retail_price", *input.RetailPrice)
	}
	if input.SellPrice != nil {
		add("sell_price", *input.SellPrice)
	}
	if len(sets) == 0 {
		product, err := r.GetProduct(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		if product.Archived() {
			return domain.Product{}, domain.NewNotFoundError("product", id)
		}
		return product, nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE products SET ` + strings.Join(sets, ", ") + `
		WHERE id = $1 AND archived_at IS NULL
		RETURNING ` + productColumns
	product, err := getProduct(ctx, r.pool, query, args...)
	if isUniqueViolation(err) {
		return domain.Product{}, domain.NewConflictError(fmt.Sprintf("product %q already exists", strings.TrimSpace(*input.Name)))
	}
	return product, err
}

func (r *Repository) ArchiveProduct(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE products
		SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("archive product: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("product", id)
	}
	return nil
}

func (r *Repository) Restock(ctx context.Context, id int64, delta int) (domain.Product, error) {
	product, err := getProduct(ctx, r.pool, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL
		RETURNING `+productColumns, id, delta)
	if isOutOfRange(err) {
		return domain.Product{}, errStockOutOfRange(id)
	}
	return product, err
}

func (t *pgTx) LockProduct(ctx context.Context, id int64) (domain.Product, error) {
	return getProduct(ctx, t.tx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockProductByName(ctx context.Context, name string) (domain.Product, error) {
	product, err := scanProductRow(t.tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name = $1 AND archived_at IS NULL
		FOR UPDATE
	`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.NotFoundError{Entity: fmt.Sprintf("product %q", name)}
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("lock product %q: %w", name, err)
	}
	return product, nil
}

func (t *pgTx) InsertProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error) {
	return insertProduct(ctx, t.tx, input)
}

func (t *pgTx) AdjustStock(ctx context.Context, productID int64, delta int) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
	`, productID, delta)
	if isCheckViolation(err) {
		return domain.ErrInsufficientStock
	}
	if isOutOfRange(err) {
		return errStockOutOfRange(productID)
	}
	if err != nil {
		return fmt.Errorf("adjust stock for product %d: %w", productID, err)
	}
	if cmd.RowsAffected() == 0 {
		if delta < 0 {
			return domain.ErrInsufficientStock
		}
		return domain.NewNotFoundError("product", productID)
	}
	return nil
}

func getProduct(ctx context.Context, q querier, query string, args ...any) (domain.Product, error) {
	product, err := scanProductRow(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var id int64
		if len(args) > 0 {
			id, _ = args[0].(int64)
		}
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product: %w", err)
	}
	return product, nil
}

func insertProduct(ctx context.Context, q querier, input ProductCreateInput) (domain.Product, error) {
	product, err := scanProductRow(q.QueryRow(ctx, `
		INSERT INTO products (name, description, retail_price, sell_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		input.Name, input.Description, input.RetailPrice, input.SellPrice, input.Quantity,
	))
	if isUniqueViolation(err) {
		return domain.Product{}, domain.NewConflictError(fmt.Sprintf("product %q already exists", input.Name))
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product %q: %w", input.Name, err)
	}
	return product, nil
}

func scanProductRow(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.RetailPrice,
		&p.SellPrice,
		&p.Quantity,
		&p.ArchivedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
