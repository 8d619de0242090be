package repository

import (
	"context"
	"errors"
	"fmt"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
)

const vendorColumns = `id, name, contact, phone, address, archived_at, created_at`

const workerColumns = `
	id,
	name,
	father_name,
	phone,
	cnic,
	salary,
	bonus,
	role,
	joining_date,
	benefits,
	archived_at,
	created_at
`

func (r *Repository) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+vendorColumns+`
		FROM vendors
		WHERE archived_at IS NULL
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Vendor, 0)
	for rows.Next() {
		v, err := scanVendorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return items, nil
}

func (r *Repository) CreateVendor(ctx context.Context, input VendorInput) (domain.Vendor, error) {
	v, err := scanVendorRow(r.pool.QueryRow(ctx, `
		INSERT INTO vendors (name, contact, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING `+vendorColumns,
		input.Name, input.Contact, input.Phone, input.Address,
	))
	if err != nil {
		return domain.Vendor{}, fmt.Errorf("create vendor: %w", err)
	}
	return v, nil
}

func (r *Repository) ArchiveVendor(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx,
		"UPDATE vendors SET archived_at = NOW() WHERE id = $1 AND archived_at IS NULL",
		id,
	)
	if err != nil {
		return fmt.Errorf("archive vendor: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("vendor", id)
	}
	return nil
}

func getVendor(ctx context.Context, q querier, id int64) (domain.Vendor, error) {
	v, err := scanVendorRow(q.QueryRow(ctx, `
		SELECT `+vendorColumns+`
		FROM vendors
		WHERE id = $1 AND archived_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vendor{}, domain.NewNotFoundError("vendor", id)
	}
	if err != nil {
		return domain.Vendor{}, fmt.Errorf("get vendor: %w", err)
	}
	return v, nil
}

func (r *Repository) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE archived_at IS NULL
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Worker, 0)
	for rows.Next() {
		w, err := scanWorkerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workers: %w", err)
	}
	return items, nil
}

func (r *Repository) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	return getWorker(ctx, r.pool, id)
}

func (r *Repository) CreateWorker(ctx context.Context, input WorkerInput) (domain.Worker, error) {
	w, err := scanWorkerRow(r.pool.QueryRow(ctx, `
		INSERT INTO workers (name, father_name, phone, cnic, salary, bonus, role, joining_date, benefits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+workerColumns,
		input.Name, input.FatherName, input.Phone, input.CNIC, input.Salary,
		input.Bonus, input.Role, input.JoiningDate, input.Benefits,
	))
	if err != nil {
		return domain.Worker{}, fmt.Errorf("create worker: %w", err)
	}
	return w, nil
}

func (r *Repository) UpdateWorker(ctx context.Context, id int64, input WorkerInput) (domain.Worker, error) {
	w, err := scanWorkerRow(r.pool.QueryRow(ctx, `
		UPDATE workers
		SET
			name = $2,
			father_name = $3,
			phone = $4,
			cnic = $5,
			salary = $6,
			bonus = $7,
			role = $8,
			joining_date = $9,
			benefits = $10
		WHERE id = $1 AND archived_at IS NULL
		RETURNING `+workerColumns,
		id, input.Name, input.FatherName, input.Phone, input.CNIC, input.Salary,
		input.Bonus, input.Role, input.JoiningDate, input.Benefits,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Worker{}, domain.NewNotFoundError("worker", id)
	}
	if err != nil {
		return domain.Worker{}, fmt.Errorf("update worker: %w", err)
	}
	return w, nil
}

func (r *Repository) ArchiveWorker(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx,
		"UPDATE workers SET archived_at = NOW() WHERE id = $1 AND archived_at IS NULL",
		id,
	)
	if err != nil {
		return fmt.Errorf("archive worker: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFoundError("worker", id)
	}
	return nil
}

func getWorker(ctx context.Context, q querier, id int64) (domain.Worker, error) {
	w, err := scanWorkerRow(q.QueryRow(ctx, `
		SELECT `+workerColumns+`
		FROM workers
		WHERE id = $1 AND archived_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Worker{}, domain.NewNotFoundError("worker", id)
	}
	if err != nil {
		return domain.Worker{}, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

func scanVendorRow(row pgx.Row) (domain.Vendor, error) {
	var v domain.Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Contact, &v.Phone, &v.Address, &v.ArchivedAt, &v.CreatedAt)
	return v, err
}

func scanWorkerRow(row pgx.Row) (domain.Worker, error) {
	var w domain.Worker
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.FatherName,
		&w.Phone,
		&w.CNIC,
		&w.Salary,
		&w.Bonus,
		&w.Role,
		&w.JoiningDate,
		&w.Benefits,
		&w.ArchivedAt,
		&w.CreatedAt,
	)
	return w, err
}
