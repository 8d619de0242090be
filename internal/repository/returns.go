package repository

import (
	"context"
	"errors"
	"fmt"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) ListReturns(ctx context.Context, limit, offset int) ([]domain.Return, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			rt.id,
			rt.sales_receipt_id,
			rt.sales_receipt_line_id,
			rt.sale_id,
			rt.product_id,
			p.name,
			rt.worker_id,
			rt.quantity,
			rt.reason,
			rt.returned_amount,
			rt.created_at
		FROM returns rt
		JOIN products p ON p.id = rt.product_id
		ORDER BY rt.created_at DESC, rt.id DESC
		LIMIT $1 OFFSET $2
	`, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Return, 0)
	for rows.Next() {
		var ret domain.Return
		if err := rows.Scan(
			&ret.ID,
			&ret.SalesReceiptID,
			&ret.SalesReceiptLineID,
			&ret.SaleID,
			&ret.ProductID,
			&ret.ProductName,
			&ret.WorkerID,
			&ret.Quantity,
			&ret.Reason,
			&ret.ReturnedAmount,
			&ret.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		items = append(items, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate returns: %w", err)
	}
	return items, nil
}

func (t *pgTx) InsertReturn(ctx context.Context, ret domain.Return) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO returns (
			sales_receipt_id,
			sales_receipt_line_id,
			sale_id,
			product_id,
			worker_id,
			quantity,
			reason,
			returned_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, ret.SalesReceiptID, ret.SalesReceiptLineID, ret.SaleID, ret.ProductID,
		ret.WorkerID, ret.Quantity, ret.Reason, ret.ReturnedAmount,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert return: %w", err)
	}
	return id, nil
}

func (t *pgTx) LockLegacySale(ctx context.Context, id int64) (domain.LegacySale, error) {
	var sale domain.LegacySale
	err := t.tx.QueryRow(ctx, `
		SELECT
			id,
			product_id,
			worker_id,
			quantity,
			sold_price,
			total_amount,
			payment_status,
			migrated_receipt_id,
			created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&sale.ID,
		&sale.ProductID,
		&sale.WorkerID,
		&sale.Quantity,
		&sale.SoldPrice,
		&sale.TotalAmount,
		&sale.PaymentStatus,
		&sale.MigratedReceiptID,
		&sale.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LegacySale{}, domain.NewNotFoundError("sale", id)
	}
	if err != nil {
		return domain.LegacySale{}, fmt.Errorf("lock sale: %w", err)
	}
	return sale, nil
}

func (t *pgTx) SumLegacyReturned(ctx context.Context, saleID int64) (int, error) {
	var total int
	if err := t.tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0)::int FROM returns WHERE sale_id = $1",
		saleID,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum returned quantity: %w", err)
	}
	return total, nil
}

func (t *pgTx) SetLegacySaleStatus(ctx context.Context, id int64, status string) error {
	if _, err := t.tx.Exec(ctx, "UPDATE sales SET payment_status = $2 WHERE id = $1", id, status); err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	return nil
}
