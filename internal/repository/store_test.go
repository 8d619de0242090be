package repository_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"shopmanager/internal/db"
	"shopmanager/internal/domain"
	"shopmanager/internal/repository"
	"shopmanager/internal/service"

	"github.com/shopspring/decimal"
)

// testStore pairs a Store with a way to seed flat legacy sales, which no
// Store method creates.
type testStore struct {
	repository.Store
	seedLegacySale func(t *testing.T, sale domain.LegacySale) int64
}

type storeFactory func(t *testing.T) testStore

func stores(t *testing.T) map[string]storeFactory {
	t.Helper()
	out := map[string]storeFactory{
		"memory": func(t *testing.T) testStore {
			mem := repository.NewMemoryStore()
			return testStore{
				Store: mem,
				seedLegacySale: func(t *testing.T, sale domain.LegacySale) int64 {
					return mem.SeedLegacySale(sale).ID
				},
			}
		},
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		return out
	}
	out["postgres"] = func(t *testing.T) testStore {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 4})
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(pool.Close)
		if err := db.RunMigrations(ctx, pool); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return testStore{
			Store: repository.New(pool),
			seedLegacySale: func(t *testing.T, sale domain.LegacySale) int64 {
				t.Helper()
				var id int64
				if err := pool.QueryRow(ctx, `
					INSERT INTO sales (product_id, worker_id, quantity, sold_price, total_amount)
					VALUES ($1, $2, $3, $4, $5)
					RETURNING id
				`, sale.ProductID, sale.WorkerID, sale.Quantity, sale.SoldPrice,
					sale.SoldPrice.Mul(decimal.NewFromInt(int64(sale.Quantity))),
				).Scan(&id); err != nil {
					t.Fatalf("seed legacy sale: %v", err)
				}
				return id
			},
		}
	}
	return out
}

// uniqueName keeps product names apart across runs against a shared database.
func uniqueName(t *testing.T, base string) string {
	return fmt.Sprintf("%s %s %d", base, t.Name(), time.Now().UnixNano())
}

func TestStoreAdjustStockNeverGoesNegative(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			p, err := store.CreateProduct(ctx, repository.ProductCreateInput{
				Name:        uniqueName(t, "Bolt"),
				RetailPrice: decimal.NewFromInt(2),
				SellPrice:   decimal.NewFromInt(3),
				Quantity:    4,
			})
			if err != nil {
				t.Fatalf("create product: %v", err)
			}

			err = store.WithTx(ctx, func(tx repository.LedgerTx) error {
				return tx.AdjustStock(ctx, p.ID, -5)
			})
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Fatalf("expected insufficient stock, got %v", err)
			}

			if err := store.WithTx(ctx, func(tx repository.LedgerTx) error {
				return tx.AdjustStock(ctx, p.ID, -4)
			}); err != nil {
				t.Fatalf("adjust to zero: %v", err)
			}
			got, err := store.GetProduct(ctx, p.ID)
			if err != nil {
				t.Fatalf("get product: %v", err)
			}
			if got.Quantity != 0 {
				t.Fatalf("expected quantity 0, got %d", got.Quantity)
			}

			if _, err := store.Restock(ctx, p.ID, math.MaxInt32); err != nil {
				t.Fatalf("restock to the limit: %v", err)
			}
			err = store.WithTx(ctx, func(tx repository.LedgerTx) error {
				return tx.AdjustStock(ctx, p.ID, 1)
			})
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected overflow to be a validation error, got %v", err)
			}
			if _, err := store.Restock(ctx, p.ID, 1); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected restock overflow to be a validation error, got %v", err)
			}
		})
	}
}

func TestStoreWithTxRollsBackOnError(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			p, err := store.CreateProduct(ctx, repository.ProductCreateInput{
				Name:        uniqueName(t, "Nut"),
				RetailPrice: decimal.NewFromInt(1),
				SellPrice:   decimal.NewFromInt(2),
				Quantity:    10,
			})
			if err != nil {
				t.Fatalf("create product: %v", err)
			}

			boom := errors.New("boom")
			err = store.WithTx(ctx, func(tx repository.LedgerTx) error {
				if err := tx.AdjustStock(ctx, p.ID, -3); err != nil {
					return err
				}
				if _, err := tx.InsertProduct(ctx, repository.ProductCreateInput{Name: uniqueName(t, "Washer")}); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}

			got, err := store.GetProduct(ctx, p.ID)
			if err != nil {
				t.Fatalf("get product: %v", err)
			}
			if got.Quantity != 10 {
				t.Fatalf("expected quantity restored to 10, got %d", got.Quantity)
			}
		})
	}
}

func TestStoreArchivedProducts(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			p, err := store.CreateProduct(ctx, repository.ProductCreateInput{
				Name:     uniqueName(t, "Hinge"),
				Quantity: 1,
			})
			if err != nil {
				t.Fatalf("create product: %v", err)
			}
			if err := store.ArchiveProduct(ctx, p.ID); err != nil {
				t.Fatalf("archive: %v", err)
			}
			if err := store.ArchiveProduct(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found on second archive, got %v", err)
			}
			if _, err := store.Restock(ctx, p.ID, 3); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found on restock, got %v", err)
			}
			rename := "renamed"
			if _, err := store.PatchProduct(ctx, p.ID, repository.ProductPatchInput{Name: &rename}); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found on patch, got %v", err)
			}

			got, err := store.GetProduct(ctx, p.ID)
			if err != nil {
				t.Fatalf("get archived product: %v", err)
			}
			if !got.Archived() {
				t.Fatal("expected archived_at to be set")
			}

			active, err := store.ListProducts(ctx, repository.ProductListFilter{Search: p.Name})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(active) != 0 {
				t.Fatalf("archived product listed: %+v", active)
			}
			all, err := store.ListProducts(ctx, repository.ProductListFilter{Search: p.Name, IncludeArchived: true})
			if err != nil {
				t.Fatalf("list archived: %v", err)
			}
			if len(all) != 1 {
				t.Fatalf("expected archived product with include_archived, got %d", len(all))
			}
		})
	}
}

func TestStoreDuplicateProductName(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			input := repository.ProductCreateInput{Name: uniqueName(t, "Hammer")}
			if _, err := store.CreateProduct(ctx, input); err != nil {
				t.Fatalf("create product: %v", err)
			}
			if _, err := store.CreateProduct(ctx, input); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestMemoryStoreCanceledContextRollsBack(t *testing.T) {
	store := repository.NewMemoryStore()
	p, err := store.CreateProduct(context.Background(), repository.ProductCreateInput{Name: "Saw", Quantity: 2})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = store.WithTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.AdjustStock(ctx, p.ID, -1); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	got, _ := store.GetProduct(context.Background(), p.ID)
	if got.Quantity != 2 {
		t.Fatalf("expected quantity 2 after rollback, got %d", got.Quantity)
	}
}

func TestStoreLedgerScenario(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			svc := service.New(store.Store, nil, service.Options{})
			actor := domain.Actor{Email: "owner@shop.test", Role: domain.RoleSuperAdmin}

			worker, err := svc.CreateWorker(ctx, actor, repository.WorkerInput{Name: uniqueName(t, "Ali")})
			if err != nil {
				t.Fatalf("create worker: %v", err)
			}
			p, err := svc.CreateProduct(ctx, actor, repository.ProductCreateInput{
				Name:        uniqueName(t, "Kettle"),
				RetailPrice: decimal.NewFromInt(4),
				SellPrice:   decimal.NewFromInt(5),
				Quantity:    10,
			})
			if err != nil {
				t.Fatalf("create product: %v", err)
			}
			stock := func() int {
				t.Helper()
				got, err := svc.GetProduct(ctx, p.ID)
				if err != nil {
					t.Fatalf("get product: %v", err)
				}
				return got.Quantity
			}
			receiptAfter := func(id int64, wantTotal string, wantLines int) domain.SalesReceipt {
				t.Helper()
				receipt, err := svc.GetSalesReceipt(ctx, id)
				if err != nil {
					t.Fatalf("get receipt: %v", err)
				}
				sum := decimal.Zero
				for _, l := range receipt.Lines {
					sum = sum.Add(l.LineTotal())
				}
				if !receipt.TotalAmount.Equal(decimal.RequireFromString(wantTotal)) || !sum.Equal(receipt.TotalAmount) {
					t.Fatalf("receipt total %s, lines %s, want %s", receipt.TotalAmount, sum, wantTotal)
				}
				if len(receipt.Lines) != wantLines || receipt.LineCount != wantLines {
					t.Fatalf("expected %d lines, got %d (line_count %d)", wantLines, len(receipt.Lines), receipt.LineCount)
				}
				return receipt
			}

			res, err := svc.RecordSaleReceipt(ctx, actor, domain.SaleReceiptInput{
				WorkerID:     worker.ID,
				CustomerName: "Walk-in",
				Lines: []domain.SalesLineInput{
					{ProductID: p.ID, Quantity: 3, SoldPrice: decimal.RequireFromString("5.25")},
				},
			})
			if err != nil {
				t.Fatalf("record sale: %v", err)
			}
			if !res.TotalAmount.Equal(decimal.RequireFromString("15.75")) {
				t.Fatalf("expected total 15.75, got %s", res.TotalAmount)
			}
			if got := stock(); got != 7 {
				t.Fatalf("expected stock 7, got %d", got)
			}
			receipt := receiptAfter(res.ReceiptID, "15.75", 1)
			lineID := receipt.Lines[0].ID

			ret, err := svc.ReturnReceiptLine(ctx, actor, res.ReceiptID, lineID, 1, "scratched")
			if err != nil {
				t.Fatalf("partial return: %v", err)
			}
			if ret.RemainingLines != 1 || ret.PaymentStatus != domain.PaymentPaid {
				t.Fatalf("unexpected partial return %+v", ret)
			}
			if got := stock(); got != 8 {
				t.Fatalf("expected stock 8, got %d", got)
			}
			receiptAfter(res.ReceiptID, "10.50", 1)

			if _, err := svc.ReturnReceiptLine(ctx, actor, res.ReceiptID, lineID, 3, ""); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected over-return conflict, got %v", err)
			}

			ret, err = svc.ReturnReceiptLine(ctx, actor, res.ReceiptID, lineID, 2, "")
			if err != nil {
				t.Fatalf("full return: %v", err)
			}
			if ret.RemainingLines != 0 || !ret.TotalAmount.IsZero() || ret.PaymentStatus != domain.PaymentAllRemoved {
				t.Fatalf("unexpected full return %+v", ret)
			}
			if got := stock(); got != 10 {
				t.Fatalf("expected stock 10, got %d", got)
			}
			receipt = receiptAfter(res.ReceiptID, "0", 0)
			if receipt.PaymentStatus != domain.PaymentAllRemoved {
				t.Fatalf("expected terminal status, got %s", receipt.PaymentStatus)
			}

			_, err = svc.RecordSaleReceipt(ctx, actor, domain.SaleReceiptInput{
				WorkerID:     worker.ID,
				CustomerName: "Walk-in",
				Lines:        []domain.SalesLineInput{{ProductID: p.ID, Quantity: 11, SoldPrice: decimal.NewFromInt(5)}},
			})
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Fatalf("expected insufficient stock, got %v", err)
			}
			if got := stock(); got != 10 {
				t.Fatalf("expected stock 10 after failed sale, got %d", got)
			}

			saleID := store.seedLegacySale(t, domain.LegacySale{
				ProductID: p.ID,
				WorkerID:  worker.ID,
				Quantity:  2,
				SoldPrice: decimal.NewFromInt(5),
			})
			legacy, err := svc.LegacyReturn(ctx, actor, domain.LegacyReturnInput{SaleID: saleID, ProductID: p.ID, Quantity: 1})
			if err != nil {
				t.Fatalf("legacy return: %v", err)
			}
			if legacy.ReturnedQuantity != 1 || legacy.PaymentStatus != domain.LegacySalePaid {
				t.Fatalf("unexpected legacy return %+v", legacy)
			}
			legacy, err = svc.LegacyReturn(ctx, actor, domain.LegacyReturnInput{SaleID: saleID, ProductID: p.ID, Quantity: 1})
			if err != nil {
				t.Fatalf("second legacy return: %v", err)
			}
			if legacy.ReturnedQuantity != 2 || legacy.PaymentStatus != domain.LegacySaleReturned {
				t.Fatalf("unexpected legacy return %+v", legacy)
			}
			if _, err := svc.LegacyReturn(ctx, actor, domain.LegacyReturnInput{SaleID: saleID, ProductID: p.ID, Quantity: 1}); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected conflict past sale quantity, got %v", err)
			}
			if got := stock(); got != 12 {
				t.Fatalf("expected stock 12 after legacy returns, got %d", got)
			}
		})
	}
}
