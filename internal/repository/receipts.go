package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const salesReceiptSelect = `
	SELECT
		sr.id,
		sr.worker_id,
		COALESCE(w.name, ''),
		sr.payment_status,
		sr.customer_name,
		sr.customer_phone,
		sr.total_amount,
		(SELECT COUNT(*)::int FROM sales_receipt_lines l WHERE l.receipt_id = sr.id),
		sr.created_by,
		sr.created_at,
		sr.updated_at
	FROM sales_receipts sr
	LEFT JOIN workers w ON w.id = sr.worker_id
`

func (r *Repository) ListSalesReceipts(ctx context.Context, filter SalesReceiptFilter) ([]domain.SalesReceipt, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	query := salesReceiptSelect + " WHERE 1=1"
	args := make([]any, 0, 6)
	argIndex := 1
	if filter.Status != nil {
		query += fmt.Sprintf(" AND sr.payment_status = $%d", argIndex)
		args = append(args, string(*filter.Status))
		argIndex++
	}
	if filter.WorkerID != nil {
		query += fmt.Sprintf(" AND sr.worker_id = $%d", argIndex)
		args = append(args, *filter.WorkerID)
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND sr.created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND sr.created_at < $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}
	query += fmt.Sprintf(" ORDER BY sr.created_at DESC, sr.id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales receipts: %w", err)
	}
	receipts := make([]domain.SalesReceipt, 0)
	for rows.Next() {
		receipt, err := scanSalesReceiptRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sales receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales receipts: %w", err)
	}

	if filter.WithLines {
		for i := range receipts {
			lines, err := loadSalesReceiptLines(ctx, r.pool, receipts[i].ID)
			if err != nil {
				return nil, err
			}
			receipts[i].Lines = lines
		}
	}
	return receipts, nil
}

func (r *Repository) GetSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error) {
	receipt, err := scanSalesReceiptRow(r.pool.QueryRow(ctx, salesReceiptSelect+" WHERE sr.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SalesReceipt{}, domain.NewNotFoundError("sales receipt", id)
	}
	if err != nil {
		return domain.SalesReceipt{}, fmt.Errorf("get sales receipt: %w", err)
	}
	receipt.Lines, err = loadSalesReceiptLines(ctx, r.pool, id)
	if err != nil {
		return domain.SalesReceipt{}, err
	}
	return receipt, nil
}

func loadSalesReceiptLines(ctx context.Context, q querier, receiptID int64) ([]domain.SalesReceiptLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.receipt_id, l.product_id, p.name, l.quantity, l.sold_price
		FROM sales_receipt_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.receipt_id = $1
		ORDER BY l.id ASC
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("load sales receipt lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.SalesReceiptLine, 0)
	for rows.Next() {
		var line domain.SalesReceiptLine
		if err := rows.Scan(
			&line.ID,
			&line.ReceiptID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.SoldPrice,
		); err != nil {
			return nil, fmt.Errorf("scan sales receipt line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales receipt lines: %w", err)
	}
	return lines, nil
}

func (t *pgTx) InsertSalesReceipt(ctx context.Context, receipt domain.SalesReceipt) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO sales_receipts (
			worker_id,
			payment_status,
			customer_name,
			customer_phone,
			total_amount,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, receipt.WorkerID, string(receipt.PaymentStatus), receipt.CustomerName,
		receipt.CustomerPhone, receipt.TotalAmount, receipt.CreatedBy,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert sales receipt: %w", err)
	}
	return id, nil
}

func (t *pgTx) InsertSalesReceiptLine(ctx context.Context, line domain.SalesReceiptLine) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO sales_receipt_lines (receipt_id, product_id, quantity, sold_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, line.ReceiptID, line.ProductID, line.Quantity, line.SoldPrice).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert sales receipt line: %w", err)
	}
	return id, nil
}

func (t *pgTx) LockSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error) {
	receipt, err := scanSalesReceiptRow(t.tx.QueryRow(ctx, salesReceiptSelect+" WHERE sr.id = $1 FOR UPDATE OF sr", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SalesReceipt{}, domain.NewNotFoundError("sales receipt", id)
	}
	if err != nil {
		return domain.SalesReceipt{}, fmt.Errorf("lock sales receipt: %w", err)
	}
	return receipt, nil
}

func (t *pgTx) LockSalesReceiptLine(ctx context.Context, lineID int64) (domain.SalesReceiptLine, error) {
	var line domain.SalesReceiptLine
	err := t.tx.QueryRow(ctx, `
		SELECT id, receipt_id, product_id, quantity, sold_price
		FROM sales_receipt_lines
		WHERE id = $1
		FOR UPDATE
	`, lineID).Scan(&line.ID, &line.ReceiptID, &line.ProductID, &line.Quantity, &line.SoldPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SalesReceiptLine{}, domain.NewNotFoundError("receipt item", lineID)
	}
	if err != nil {
		return domain.SalesReceiptLine{}, fmt.Errorf("lock sales receipt line: %w", err)
	}
	return line, nil
}

func (t *pgTx) SetSalesReceiptLineQuantity(ctx context.Context, lineID int64, quantity int) error {
	cmd, err := t.tx.Exec(ctx, "UPDATE sales_receipt_lines SET quantity = $2 WHERE id = $1", lineID, quantity)
	if err != nil {
		return fmt.Errorf("update sales receipt line: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("receipt item", lineID)
	}
	return nil
}

func (t *pgTx) DeleteSalesReceiptLine(ctx context.Context, lineID int64) error {
	cmd, err := t.tx.Exec(ctx, "DELETE FROM sales_receipt_lines WHERE id = $1", lineID)
	if err != nil {
		return fmt.Errorf("delete sales receipt line: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("receipt item", lineID)
	}
	return nil
}

func (t *pgTx) SumSalesReceiptLines(ctx context.Context, receiptID int64) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	if err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity * sold_price), 0), COUNT(*)::int
		FROM sales_receipt_lines
		WHERE receipt_id = $1
	`, receiptID).Scan(&total, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum sales receipt lines: %w", err)
	}
	return total, count, nil
}

func (t *pgTx) UpdateSalesReceiptTotals(ctx context.Context, id int64, total decimal.Decimal, status domain.PaymentStatus) error {
	cmd, err := t.tx.Exec(ctx, `
		UPDATE sales_receipts
		SET total_amount = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, total, string(status))
	if err != nil {
		return fmt.Errorf("update sales receipt totals: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("sales receipt", id)
	}
	return nil
}

func scanSalesReceiptRow(row pgx.Row) (domain.SalesReceipt, error) {
	var (
		receipt domain.SalesReceipt
		status  string
		phone   sql.NullString
		creator sql.NullString
	)
	if err := row.Scan(
		&receipt.ID,
		&receipt.WorkerID,
		&receipt.WorkerName,
		&status,
		&receipt.CustomerName,
		&phone,
		&receipt.TotalAmount,
		&receipt.LineCount,
		&creator,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	); err != nil {
		return domain.SalesReceipt{}, err
	}
	receipt.PaymentStatus = domain.PaymentStatus(status)
	if phone.Valid {
		value := phone.String
		receipt.CustomerPhone = &value
	}
	if creator.Valid {
		value := creator.String
		receipt.CreatedBy = &value
	}
	return receipt, nil
}

func (r *Repository) ListPurchaseReceipts(ctx context.Context, limit, offset int) ([]domain.PurchaseReceipt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pr.id, pr.vendor_id, COALESCE(v.name, ''), pr.invoice_no, pr.total_amount, pr.created_by, pr.created_at
		FROM purchase_receipts pr
		LEFT JOIN vendors v ON v.id = pr.vendor_id
		ORDER BY pr.created_at DESC, pr.id DESC
		LIMIT $1 OFFSET $2
	`, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, fmt.Errorf("list purchase receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]domain.PurchaseReceipt, 0)
	for rows.Next() {
		receipt, err := scanPurchaseReceiptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase receipts: %w", err)
	}
	return receipts, nil
}

func (r *Repository) GetPurchaseReceipt(ctx context.Context, id int64) (domain.PurchaseReceipt, error) {
	receipt, err := scanPurchaseReceiptRow(r.pool.QueryRow(ctx, `
		SELECT pr.id, pr.vendor_id, COALESCE(v.name, ''), pr.invoice_no, pr.total_amount, pr.created_by, pr.created_at
		FROM purchase_receipts pr
		LEFT JOIN vendors v ON v.id = pr.vendor_id
		WHERE pr.id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PurchaseReceipt{}, domain.NewNotFoundError("purchase receipt", id)
	}
	if err != nil {
		return domain.PurchaseReceipt{}, fmt.Errorf("get purchase receipt: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.receipt_id, l.product_id, p.name, l.quantity, l.cost_price, l.sell_price
		FROM purchase_receipt_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.receipt_id = $1
		ORDER BY l.id ASC
	`, id)
	if err != nil {
		return domain.PurchaseReceipt{}, fmt.Errorf("load purchase receipt lines: %w", err)
	}
	defer rows.Close()

	receipt.Lines = make([]domain.PurchaseReceiptLine, 0)
	for rows.Next() {
		var line domain.PurchaseReceiptLine
		if err := rows.Scan(
			&line.ID,
			&line.ReceiptID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.CostPrice,
			&line.SellPrice,
		); err != nil {
			return domain.PurchaseReceipt{}, fmt.Errorf("scan purchase receipt line: %w", err)
		}
		receipt.Lines = append(receipt.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.PurchaseReceipt{}, fmt.Errorf("iterate purchase receipt lines: %w", err)
	}
	return receipt, nil
}

func (t *pgTx) InsertPurchaseReceipt(ctx context.Context, receipt domain.PurchaseReceipt) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_receipts (vendor_id, invoice_no, total_amount, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, receipt.VendorID, receipt.InvoiceNo, receipt.TotalAmount, receipt.CreatedBy).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert purchase receipt: %w", err)
	}
	return id, nil
}

func (t *pgTx) InsertPurchaseReceiptLine(ctx context.Context, line domain.PurchaseReceiptLine) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_receipt_lines (receipt_id, product_id, quantity, cost_price, sell_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, line.ReceiptID, line.ProductID, line.Quantity, line.CostPrice, line.SellPrice).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert purchase receipt line: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpdatePurchaseReceiptTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, "UPDATE purchase_receipts SET total_amount = $2 WHERE id = $1", id, total); err != nil {
		return fmt.Errorf("update purchase receipt total: %w", err)
	}
	return nil
}

func scanPurchaseReceiptRow(row pgx.Row) (domain.PurchaseReceipt, error) {
	var (
		receipt   domain.PurchaseReceipt
		invoiceNo sql.NullString
		creator   sql.NullString
	)
	if err := row.Scan(
		&receipt.ID,
		&receipt.VendorID,
		&receipt.VendorName,
		&invoiceNo,
		&receipt.TotalAmount,
		&creator,
		&receipt.CreatedAt,
	); err != nil {
		return domain.PurchaseReceipt{}, err
	}
	if invoiceNo.Valid {
		value := invoiceNo.String
		receipt.InvoiceNo = &value
	}
	if creator.Valid {
		value := creator.String
		receipt.CreatedBy = &value
	}
	return receipt, nil
}
