package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shopmanager/internal/config"
	"shopmanager/internal/db"
	"shopmanager/internal/domain"
	"shopmanager/internal/repository"
	"shopmanager/internal/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const operator = "migrate_legacy_sales"

type options struct {
	openingStockPath string
	vendorName       string
	dryRun           bool
}

type legacySale struct {
	ID        int64
	ProductID int64
	WorkerID  int64
	Quantity  int
	SoldPrice decimal.Decimal
	Returned  int
	CreatedAt time.Time
}

type migrationStats struct {
	Migrated int
	Emptied  int
	Skipped  int
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	if opts.openingStockPath != "" {
		if opts.dryRun {
			log.Printf("dry run: skipping opening stock import from %s", opts.openingStockPath)
		} else if err := importOpeningStock(ctx, pool, opts); err != nil {
			log.Fatalf("opening stock import failed: %v", err)
		}
	}

	stats, err := migrateSales(ctx, pool, opts.dryRun)
	if err != nil {
		log.Fatalf("sales migration failed: %v", err)
	}
	log.Printf(
		"sales migration complete: migrated=%d fully_returned=%d skipped=%d dry_run=%t",
		stats.Migrated,
		stats.Emptied,
		stats.Skipped,
		opts.dryRun,
	)
}

func parseFlags() options {
	var opts options
	flag.StringVar(
		&opts.openingStockPath,
		"opening-stock",
		"",
		"optional .xlsx or .csv purchase sheet (name, quantity, cost_price, sell_price) booked as opening stock",
	)
	flag.StringVar(
		&opts.vendorName,
		"vendor",
		"Opening stock",
		"vendor name the opening stock receipt is booked against",
	)
	flag.BoolVar(
		&opts.dryRun,
		"dry-run",
		false,
		"roll back the sales migration instead of committing it",
	)
	flag.Parse()
	if strings.TrimSpace(opts.vendorName) == "" {
		log.Fatalf("invalid --vendor: must not be empty")
	}
	return opts
}

// importOpeningStock books the sheet as one purchase receipt through the
// ledger engine, so products are created or incremented exactly as the API
// would do it. A sheet already booked under the same file name is skipped.
func importOpeningStock(ctx context.Context, pool *pgxpool.Pool, opts options) error {
	invoice := "opening-stock:" + filepath.Base(opts.openingStockPath)
	existing, found, err := findPurchaseReceipt(ctx, pool, invoice)
	if err != nil {
		return err
	}
	if found {
		log.Printf("opening stock already booked as receipt %d (%s); skipping", existing, invoice)
		return nil
	}

	file, err := os.Open(opts.openingStockPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.openingStockPath, err)
	}
	defer file.Close()

	repo := repository.New(pool)
	svc := service.New(repo, nil, service.Options{})
	actor := domain.Actor{Email: operator}

	vendor, err := svc.CreateVendor(ctx, actor, repository.VendorInput{Name: opts.vendorName})
	if err != nil {
		return err
	}
	res, err := svc.ImportPurchaseReceipt(ctx, actor, vendor.ID, &invoice, file, opts.openingStockPath)
	if err != nil {
		return err
	}
	log.Printf(
		"opening stock booked: receipt=%d vendor=%d new_products=%d total=%s",
		res.ReceiptID,
		vendor.ID,
		res.CreatedProducts,
		res.TotalAmount.StringFixed(2),
	)
	return nil
}

func findPurchaseReceipt(ctx context.Context, pool *pgxpool.Pool, invoiceNo string) (int64, bool, error) {
	var id int64
	err := pool.QueryRow(ctx, `
		SELECT id
		FROM purchase_receipts
		WHERE invoice_no = $1
		ORDER BY id ASC
		LIMIT 1
	`, invoiceNo).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("look up purchase receipt %q: %w", invoiceNo, err)
	}
	return id, true, nil
}

// migrateSales converts every unmigrated flat sale into a single-line sales
// receipt holding the units not yet returned. Fully returned sales become
// emptied receipts in the terminal status.
func migrateSales(ctx context.Context, pool *pgxpool.Pool, dryRun bool) (migrationStats, error) {
	var stats migrationStats

	tx, err := pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sales, err := loadUnmigratedSales(ctx, tx)
	if err != nil {
		return stats, err
	}
	for _, sale := range sales {
		remaining := sale.Quantity - sale.Returned
		if remaining > 0 && !sale.SoldPrice.IsPositive() {
			log.Printf("skip sale %d: sold_price %s cannot form a receipt line", sale.ID, sale.SoldPrice)
			stats.Skipped++
			continue
		}
		receiptID, err := migrateSale(ctx, tx, sale, remaining)
		if err != nil {
			return stats, fmt.Errorf("sale %d: %w", sale.ID, err)
		}
		stats.Migrated++
		if remaining <= 0 {
			stats.Emptied++
		}
		log.Printf("sale %d -> sales receipt %d (remaining=%d)", sale.ID, receiptID, remaining)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO actions (admin_email, action_type, title, details)
		VALUES ($1, 'migration', 'Legacy sales migrated', $2)
	`, operator, fmt.Sprintf("migrated=%d fully_returned=%d skipped=%d", stats.Migrated, stats.Emptied, stats.Skipped)); err != nil {
		return stats, fmt.Errorf("log migration: %w", err)
	}

	if dryRun {
		return stats, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit migration tx: %w", err)
	}
	return stats, nil
}

func loadUnmigratedSales(ctx context.Context, tx pgx.Tx) ([]legacySale, error) {
	rows, err := tx.Query(ctx, `
		SELECT s.id, s.product_id, s.worker_id, s.quantity, s.sold_price,
			COALESCE((SELECT SUM(r.quantity) FROM returns r WHERE r.sale_id = s.id), 0),
			s.created_at
		FROM sales s
		WHERE s.migrated_receipt_id IS NULL
		ORDER BY s.id
		FOR UPDATE OF s
	`)
	if err != nil {
		return nil, fmt.Errorf("query legacy sales: %w", err)
	}
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legacySale, error) {
		var s legacySale
		err := row.Scan(&s.ID, &s.ProductID, &s.WorkerID, &s.Quantity, &s.SoldPrice, &s.Returned, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan legacy sales: %w", err)
	}
	return sales, nil
}

func migrateSale(ctx context.Context, tx pgx.Tx, sale legacySale, remaining int) (int64, error) {
	status := domain.PaymentPaid
	total := decimal.Zero
	if remaining <= 0 {
		status = domain.PaymentAllRemoved
	} else {
		total = sale.SoldPrice.Mul(decimal.NewFromInt(int64(remaining)))
	}

	var receiptID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO sales_receipts (worker_id, payment_status, customer_name, total_amount, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, sale.WorkerID, string(status), fmt.Sprintf("Legacy sale #%d", sale.ID), total, operator, sale.CreatedAt).Scan(&receiptID); err != nil {
		return 0, fmt.Errorf("insert receipt: %w", err)
	}

	if remaining > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sales_receipt_lines (receipt_id, product_id, quantity, sold_price)
			VALUES ($1, $2, $3, $4)
		`, receiptID, sale.ProductID, remaining, sale.SoldPrice); err != nil {
			return 0, fmt.Errorf("insert receipt line: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE returns SET sales_receipt_id = $2 WHERE sale_id = $1
	`, sale.ID, receiptID); err != nil {
		return 0, fmt.Errorf("link returns: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sales SET migrated_receipt_id = $2 WHERE id = $1
	`, sale.ID, receiptID); err != nil {
		return 0, fmt.Errorf("mark sale migrated: %w", err)
	}
	return receiptID, nil
}
