package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"shopmanager/internal/auth"
	"shopmanager/internal/domain"
	"shopmanager/internal/repository"

	"github.com/shopspring/decimal"
)

type fixture struct {
	svc    *Service
	store  *repository.MemoryStore
	actor  domain.Actor
	worker domain.Worker
	vendor domain.Vendor
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	svc := New(store, tokens, Options{InviteTTL: time.Hour})
	actor := domain.Actor{AdminID: 1, Email: "owner@shop.test", Role: domain.RoleSuperAdmin}

	worker, err := svc.CreateWorker(ctx, actor, repository.WorkerInput{Name: "Ali"})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	vendor, err := svc.CreateVendor(ctx, actor, repository.VendorInput{Name: "Wholesale Co"})
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	return fixture{svc: svc, store: store, actor: actor, worker: worker, vendor: vendor}
}

func (f fixture) product(t *testing.T, name string, qty int) domain.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), f.actor, repository.ProductCreateInput{
		Name:        name,
		RetailPrice: decimal.NewFromInt(4),
		SellPrice:   decimal.NewFromInt(5),
		Quantity:    qty,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func (f fixture) quantity(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.svc.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product %d: %v", id, err)
	}
	return p.Quantity
}

func (f fixture) sale(lines ...domain.SalesLineInput) domain.SaleReceiptInput {
	return domain.SaleReceiptInput{
		WorkerID:     f.worker.ID,
		CustomerName: "Walk-in",
		Lines:        lines,
	}
}

func line(productID int64, qty int, price string) domain.SalesLineInput {
	return domain.SalesLineInput{ProductID: productID, Quantity: qty, SoldPrice: decimal.RequireFromString(price)}
}

// assertTotalMatchesLines checks that a stored receipt total equals the sum
// of its live lines.
func assertTotalMatchesLines(t *testing.T, r domain.SalesReceipt) {
	t.Helper()
	sum := decimal.Zero
	for _, l := range r.Lines {
		sum = sum.Add(l.LineTotal())
	}
	if !r.TotalAmount.Equal(sum) {
		t.Fatalf("receipt %d total %s does not match lines %s", r.ID, r.TotalAmount, sum)
	}
	if r.LineCount != len(r.Lines) {
		t.Fatalf("receipt %d line_count %d, lines %d", r.ID, r.LineCount, len(r.Lines))
	}
}

func TestSaleReturnAndOversellScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "P", 10)

	res, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 3, "5")))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected total 15, got %s", res.TotalAmount)
	}
	if got := f.quantity(t, p.ID); got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}

	receipt, err := f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if receipt.PaymentStatus != domain.PaymentPaid || len(receipt.Lines) != 1 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	assertTotalMatchesLines(t, receipt)

	ret, err := f.svc.ReturnReceiptLine(ctx, f.actor, receipt.ID, receipt.Lines[0].ID, 3, "damaged")
	if err != nil {
		t.Fatalf("return line: %v", err)
	}
	if ret.RemainingLines != 0 || !ret.TotalAmount.IsZero() || ret.PaymentStatus != domain.PaymentAllRemoved {
		t.Fatalf("unexpected return result %+v", ret)
	}
	if got := f.quantity(t, p.ID); got != 10 {
		t.Fatalf("expected quantity 10 after return, got %d", got)
	}

	receipt, err = f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if receipt.PaymentStatus != domain.PaymentAllRemoved || !receipt.TotalAmount.IsZero() || len(receipt.Lines) != 0 {
		t.Fatalf("expected emptied receipt, got %+v", receipt)
	}

	_, err = f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 11, "5")))
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.ProductID != p.ID || stockErr.Available != 10 || stockErr.Requested != 11 {
		t.Fatalf("unexpected stock error %+v", stockErr)
	}
	if got := f.quantity(t, p.ID); got != 10 {
		t.Fatalf("expected quantity 10 after failed sale, got %d", got)
	}
}

func TestRecordSaleReceiptIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p1 := f.product(t, "Soap", 5)
	p2 := f.product(t, "Shampoo", 1)

	_, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p1.ID, 2, "3"), line(p2.ID, 3, "8")))
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductName != "Shampoo" {
		t.Fatalf("expected insufficient stock for Shampoo, got %v", err)
	}
	if got := f.quantity(t, p1.ID); got != 5 {
		t.Fatalf("first line was not rolled back: quantity %d", got)
	}
	receipts, err := f.svc.ListSalesReceipts(ctx, repository.SalesReceiptFilter{})
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(receipts) != 0 {
		t.Fatalf("expected no receipts, got %d", len(receipts))
	}
	count, err := f.svc.CountActions(ctx, "Sales receipt")
	if err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no sale audit entries, got %d", count)
	}
}

func TestRecordSaleReceiptSameProductOnTwoLines(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Rice", 5)

	_, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 3, "2"), line(p.ID, 3, "2")))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.quantity(t, p.ID); got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}

	res, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 2, "2"), line(p.ID, 3, "1.5")))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("8.5")) {
		t.Fatalf("expected total 8.5, got %s", res.TotalAmount)
	}
	if got := f.quantity(t, p.ID); got != 0 {
		t.Fatalf("expected quantity 0, got %d", got)
	}
}

func TestRecordSaleReceiptValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Tea", 5)

	cases := map[string]domain.SaleReceiptInput{
		"no lines":          f.sale(),
		"zero quantity":     f.sale(line(p.ID, 0, "1")),
		"zero price":        f.sale(line(p.ID, 1, "0")),
		"negative price":    f.sale(line(p.ID, 1, "-2")),
		"sub-cent price":    f.sale(line(p.ID, 3, "1.005")),
		"rounds to zero":    f.sale(line(p.ID, 1, "0.004")),
		"oversized total":   f.sale(line(p.ID, 2, "999999999999.99")),
		"oversized qty":     f.sale(line(p.ID, math.MaxInt32+1, "1")),
		"missing product":   f.sale(line(0, 1, "1")),
		"blank customer":    {WorkerID: f.worker.ID, CustomerName: "  ", Lines: []domain.SalesLineInput{line(p.ID, 1, "1")}},
		"missing worker":    {CustomerName: "A", Lines: []domain.SalesLineInput{line(p.ID, 1, "1")}},
		"unknown status":    {WorkerID: f.worker.ID, CustomerName: "A", PaymentStatus: "refunded", Lines: []domain.SalesLineInput{line(p.ID, 1, "1")}},
		"hold at checkout":  {WorkerID: f.worker.ID, CustomerName: "A", PaymentStatus: domain.PaymentHold, Lines: []domain.SalesLineInput{line(p.ID, 1, "1")}},
		"terminal checkout": {WorkerID: f.worker.ID, CustomerName: "A", PaymentStatus: domain.PaymentAllRemoved, Lines: []domain.SalesLineInput{line(p.ID, 1, "1")}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RecordSaleReceipt(ctx, f.actor, input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if got := f.quantity(t, p.ID); got != 5 {
		t.Fatalf("validation failures changed stock: %d", got)
	}
}

func TestCentPricesKeepTotalsExact(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Gum", 10)

	res, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 3, "1.50"), line(p.ID, 1, "2.100")))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if !res.TotalAmount.Equal(decimal.RequireFromString("6.60")) {
		t.Fatalf("expected total 6.60, got %s", res.TotalAmount)
	}
	receipt, err := f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if !receipt.TotalAmount.Equal(res.TotalAmount) {
		t.Fatalf("stored total %s differs from returned %s", receipt.TotalAmount, res.TotalAmount)
	}
	assertTotalMatchesLines(t, receipt)

	if _, err := f.svc.CreateProduct(ctx, f.actor, repository.ProductCreateInput{
		Name:      "Mint",
		SellPrice: decimal.RequireFromString("4.999"),
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected sub-cent sell price to be rejected, got %v", err)
	}
	if _, err := f.svc.CreateWorker(ctx, f.actor, repository.WorkerInput{
		Name:   "Sara",
		Salary: decimal.RequireFromString("100.001"),
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected sub-cent salary to be rejected, got %v", err)
	}
}

func TestRecordSaleReceiptNotFound(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Milk", 5)

	input := f.sale(line(p.ID, 1, "1"))
	input.WorkerID = 999
	if _, err := f.svc.RecordSaleReceipt(ctx, f.actor, input); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected worker not found, got %v", err)
	}

	if _, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 1, "1"), line(999, 1, "1"))); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
	if got := f.quantity(t, p.ID); got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}

	if err := f.svc.ArchiveProduct(ctx, f.actor, p.ID); err != nil {
		t.Fatalf("archive product: %v", err)
	}
	if _, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 1, "1"))); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected archived product to be unsellable, got %v", err)
	}
}

func TestPartialReturnKeepsStatusAndTotals(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p1 := f.product(t, "Pen", 10)
	p2 := f.product(t, "Ink", 10)

	input := f.sale(line(p1.ID, 4, "2.50"), line(p2.ID, 1, "7"))
	input.PaymentStatus = domain.PaymentPending
	res, err := f.svc.RecordSaleReceipt(ctx, f.actor, input)
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	receipt, err := f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	penLine := receipt.Lines[0]

	ret, err := f.svc.ReturnReceiptLine(ctx, f.actor, receipt.ID, penLine.ID, 1, "")
	if err != nil {
		t.Fatalf("partial return: %v", err)
	}
	if ret.RemainingLines != 2 || ret.PaymentStatus != domain.PaymentPending {
		t.Fatalf("unexpected return result %+v", ret)
	}
	if !ret.TotalAmount.Equal(decimal.RequireFromString("14.5")) {
		t.Fatalf("expected total 14.5, got %s", ret.TotalAmount)
	}
	if got := f.quantity(t, p1.ID); got != 7 {
		t.Fatalf("expected pen quantity 7, got %d", got)
	}

	receipt, err = f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	assertTotalMatchesLines(t, receipt)
	if receipt.Lines[0].Quantity != 3 {
		t.Fatalf("expected line quantity 3, got %d", receipt.Lines[0].Quantity)
	}

	if _, err := f.svc.ReturnReceiptLine(ctx, f.actor, receipt.ID, penLine.ID, 4, ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for over-return, got %v", err)
	}
	if _, err := f.svc.ReturnReceiptLine(ctx, f.actor, receipt.ID, penLine.ID, 0, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.ReturnReceiptLine(ctx, f.actor, receipt.ID+100, penLine.ID, 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing receipt, got %v", err)
	}

	other, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p2.ID, 1, "7")))
	if err != nil {
		t.Fatalf("record second sale: %v", err)
	}
	if _, err := f.svc.ReturnReceiptLine(ctx, f.actor, other.ReceiptID, penLine.ID, 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected line from another receipt to be not found, got %v", err)
	}
	if got := f.quantity(t, p1.ID); got != 7 {
		t.Fatalf("failed returns changed stock: %d", got)
	}

	returns, err := f.svc.ListReturns(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list returns: %v", err)
	}
	if len(returns) != 1 || returns[0].Quantity != 1 || !returns[0].ReturnedAmount.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected returns %+v", returns)
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Cup", 3)

	res, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 1, "4")))
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	for _, status := range []string{"hold", "pending", "paid"} {
		receipt, err := f.svc.UpdateSalesReceiptStatus(ctx, f.actor, res.ReceiptID, status)
		if err != nil {
			t.Fatalf("set %s: %v", status, err)
		}
		if string(receipt.PaymentStatus) != status {
			t.Fatalf("expected %s, got %s", status, receipt.PaymentStatus)
		}
		if !receipt.TotalAmount.Equal(decimal.NewFromInt(4)) {
			t.Fatalf("status change altered total: %s", receipt.TotalAmount)
		}
	}

	for _, bad := range []string{"", "refunded", string(domain.PaymentAllRemoved)} {
		if _, err := f.svc.UpdateSalesReceiptStatus(ctx, f.actor, res.ReceiptID, bad); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("status %q: expected validation error, got %v", bad, err)
		}
	}

	receipt, err := f.svc.GetSalesReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get receipt: %v", err)
	}
	if _, err := f.svc.ReturnReceiptLine(ctx, f.actor, res.ReceiptID, receipt.Lines[0].ID, 1, ""); err != nil {
		t.Fatalf("full return: %v", err)
	}
	if _, err := f.svc.UpdateSalesReceiptStatus(ctx, f.actor, res.ReceiptID, "paid"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected terminal status to be final, got %v", err)
	}
	if _, err := f.svc.UpdateSalesReceiptStatus(ctx, f.actor, 9999, "paid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRecordPurchaseReceipt(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	existing := f.product(t, "Flour", 2)
	invoice := " INV-7 "

	res, err := f.svc.RecordPurchaseReceipt(ctx, f.actor, domain.PurchaseReceiptInput{
		VendorID:  f.vendor.ID,
		InvoiceNo: &invoice,
		Lines: []domain.PurchaseLineInput{
			{ProductID: existing.ID, Quantity: 5, CostPrice: decimal.RequireFromString("1.20"), SellPrice: decimal.NewFromInt(2)},
			{Name: " Sugar ", Description: "1kg", Quantity: 4, CostPrice: decimal.NewFromInt(3), SellPrice: decimal.NewFromInt(4)},
			{Name: "Sugar", Quantity: 2, CostPrice: decimal.NewFromInt(3), SellPrice: decimal.NewFromInt(4)},
			{Name: "Flour", Quantity: 1, CostPrice: decimal.NewFromInt(1), SellPrice: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if res.CreatedProducts != 1 {
		t.Fatalf("expected one new product, got %d", res.CreatedProducts)
	}
	if !res.TotalAmount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected total 25, got %s", res.TotalAmount)
	}
	if got := f.quantity(t, existing.ID); got != 8 {
		t.Fatalf("expected flour quantity 8, got %d", got)
	}

	products, err := f.svc.ListProducts(ctx, repository.ProductListFilter{Search: "sugar"})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected one sugar product, got %d", len(products))
	}
	sugar := products[0]
	if sugar.Quantity != 6 || !sugar.RetailPrice.Equal(decimal.NewFromInt(3)) || sugar.Description != "1kg" {
		t.Fatalf("unexpected created product %+v", sugar)
	}

	receipt, err := f.svc.GetPurchaseReceipt(ctx, res.ReceiptID)
	if err != nil {
		t.Fatalf("get purchase receipt: %v", err)
	}
	if receipt.VendorName != "Wholesale Co" || len(receipt.Lines) != 4 || *receipt.InvoiceNo != "INV-7" {
		t.Fatalf("unexpected purchase receipt %+v", receipt)
	}
	sum := decimal.Zero
	for _, l := range receipt.Lines {
		sum = sum.Add(l.CostPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if !sum.Equal(receipt.TotalAmount) {
		t.Fatalf("purchase total %s does not match lines %s", receipt.TotalAmount, sum)
	}
}

func TestRecordPurchaseReceiptRollsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	existing := f.product(t, "Oil", 1)

	_, err := f.svc.RecordPurchaseReceipt(ctx, f.actor, domain.PurchaseReceiptInput{
		VendorID: f.vendor.ID,
		Lines: []domain.PurchaseLineInput{
			{ProductID: existing.ID, Quantity: 5, CostPrice: decimal.NewFromInt(1)},
			{Name: "Vinegar", Quantity: 5, CostPrice: decimal.NewFromInt(1)},
			{ProductID: 999, Quantity: 1, CostPrice: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.quantity(t, existing.ID); got != 1 {
		t.Fatalf("expected quantity 1 after rollback, got %d", got)
	}
	products, err := f.svc.ListProducts(ctx, repository.ProductListFilter{Search: "vinegar"})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("product created by a rolled back receipt survived")
	}

	if _, err := f.svc.RecordPurchaseReceipt(ctx, f.actor, domain.PurchaseReceiptInput{
		VendorID: 999,
		Lines:    []domain.PurchaseLineInput{{ProductID: existing.ID, Quantity: 1}},
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected vendor not found, got %v", err)
	}

	invalid := []domain.PurchaseLineInput{
		{Quantity: 1},
		{Name: "X", Quantity: 0},
		{Name: "X", Quantity: 1, CostPrice: decimal.NewFromInt(-1)},
		{Name: "X", Quantity: 1, CostPrice: decimal.RequireFromString("1.005")},
		{Name: "X", Quantity: 1, SellPrice: decimal.RequireFromString("0.001")},
		{Name: "X", Quantity: math.MaxInt32 + 1, CostPrice: decimal.NewFromInt(1)},
		{Name: "X", Quantity: 2, CostPrice: decimal.RequireFromString("999999999999.99")},
	}
	for i, l := range invalid {
		_, err := f.svc.RecordPurchaseReceipt(ctx, f.actor, domain.PurchaseReceiptInput{VendorID: f.vendor.ID, Lines: []domain.PurchaseLineInput{l}})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestRestock(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Salt", 1)

	updated, err := f.svc.Restock(ctx, f.actor, p.ID, 9)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.Quantity != 10 {
		t.Fatalf("expected 10, got %d", updated.Quantity)
	}
	if _, err := f.svc.Restock(ctx, f.actor, p.ID, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.Restock(ctx, f.actor, p.ID, math.MaxInt32+1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected oversized delta to be rejected, got %v", err)
	}
	if _, err := f.svc.Restock(ctx, f.actor, p.ID, math.MaxInt32); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected stock overflow to be rejected, got %v", err)
	}
	if got := f.quantity(t, p.ID); got != 10 {
		t.Fatalf("expected quantity 10 after rejected restocks, got %d", got)
	}
	if _, err := f.svc.Restock(ctx, f.actor, 999, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.svc.ArchiveProduct(ctx, f.actor, p.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.svc.Restock(ctx, f.actor, p.ID, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected archived product to be not found, got %v", err)
	}
}

func TestLegacyReturn(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Lamp", 0)
	sale := f.store.SeedLegacySale(domain.LegacySale{
		ProductID: p.ID,
		WorkerID:  f.worker.ID,
		Quantity:  3,
		SoldPrice: decimal.NewFromInt(20),
	})

	res, err := f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: sale.ID, ProductID: p.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("legacy return: %v", err)
	}
	if res.PaymentStatus != domain.LegacySalePaid || res.ReturnedQuantity != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.quantity(t, p.ID); got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}

	if _, err := f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: sale.ID, ProductID: p.ID, Quantity: 2}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for over-return, got %v", err)
	}
	if _, err := f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: sale.ID, ProductID: p.ID + 1, Quantity: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for product mismatch, got %v", err)
	}

	res, err = f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: sale.ID, ProductID: p.ID, Quantity: 1, Reason: "faulty"})
	if err != nil {
		t.Fatalf("final legacy return: %v", err)
	}
	if res.PaymentStatus != domain.LegacySaleReturned {
		t.Fatalf("expected returned status, got %s", res.PaymentStatus)
	}
	stored, _ := f.store.LegacySale(sale.ID)
	if stored.PaymentStatus != domain.LegacySaleReturned {
		t.Fatalf("stored sale status %s", stored.PaymentStatus)
	}
	if got := f.quantity(t, p.ID); got != 3 {
		t.Fatalf("expected quantity 3, got %d", got)
	}

	receiptID := int64(42)
	migrated := f.store.SeedLegacySale(domain.LegacySale{
		ProductID:         p.ID,
		WorkerID:          f.worker.ID,
		Quantity:          1,
		SoldPrice:         decimal.NewFromInt(20),
		MigratedReceiptID: &receiptID,
	})
	if _, err := f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: migrated.ID, ProductID: p.ID, Quantity: 1}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for migrated sale, got %v", err)
	}
	if _, err := f.svc.LegacyReturn(ctx, f.actor, domain.LegacyReturnInput{SaleID: 9999, ProductID: p.ID, Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := f.product(t, "Bread", 10)

	const buyers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 1, "1")))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 || rejected != buyers-10 {
		t.Fatalf("expected 10 sales and %d rejections, got %d and %d", buyers-10, succeeded, rejected)
	}
	if got := f.quantity(t, p.ID); got != 0 {
		t.Fatalf("expected quantity 0, got %d", got)
	}
}

func TestCanceledContextLeavesNoTrace(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Jam", 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.svc.RecordSaleReceipt(ctx, f.actor, f.sale(line(p.ID, 1, "1"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if got := f.quantity(t, p.ID); got != 4 {
		t.Fatalf("expected quantity 4, got %d", got)
	}
}

func TestImportPurchaseReceipt(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	existing := f.product(t, "Tea", 1)

	sheet := "name,quantity,cost_price,sell_price\nTea,4,2,3\nCoffee,2,5,7\n"
	res, err := f.svc.ImportPurchaseReceipt(ctx, f.actor, f.vendor.ID, nil, strings.NewReader(sheet), "delivery.csv")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.CreatedProducts != 1 || !res.TotalAmount.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.quantity(t, existing.ID); got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}

	_, err = f.svc.ImportPurchaseReceipt(ctx, f.actor, f.vendor.ID, nil, strings.NewReader("name\nTea\n"), "bad.csv")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for malformed sheet, got %v", err)
	}
}
