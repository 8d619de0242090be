package repository

import (
	"context"
	"errors"
	"fmt"

	"shopmanager/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

var _ LedgerTx = (*pgTx)(nil)

func (t *pgTx) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	return getWorker(ctx, t.tx, id)
}

func (t *pgTx) GetVendor(ctx context.Context, id int64) (domain.Vendor, error) {
	return getVendor(ctx, t.tx, id)
}

func (t *pgTx) LogAction(ctx context.Context, entry domain.ActionEntry) error {
	return logAction(ctx, t.tx, entry)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}

func errStockOutOfRange(productID int64) error {
	return domain.NewValidationError(fmt.Sprintf("stock for product %d would exceed the supported quantity", productID))
}
