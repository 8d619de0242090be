package repository

import (
	"context"
	"time"

	"shopmanager/internal/domain"

	"github.com/shopspring/decimal"
)

type ProductListFilter struct {
	Search string
	Limit  int
	Offset int
	// LowStock limits results to products at or below this quantity.
	LowStock        *int
	IncludeArchived bool
}

type ProductCreateInput struct {
	Name        string
	Description string
	RetailPrice decimal.Decimal
	SellPrice   decimal.Decimal
	Quantity    int
}

// ProductPatchInput changes catalogue fields only. Stock moves through the
// ledger operations.
type ProductPatchInput struct {
	Name        *string
	Description *string
	RetailPrice *decimal.Decimal
	SellPrice   *decimal.Decimal
}

type VendorInput struct {
	Name    string
	Contact string
	Phone   string
	Address string
}

type WorkerInput struct {
	Name        string
	FatherName  string
	Phone       string
	CNIC        string
	Salary      decimal.Decimal
	Bonus       decimal.Decimal
	Role        string
	JoiningDate *time.Time
	Benefits    string
}

type SalesReceiptFilter struct {
	Status    *domain.PaymentStatus
	WorkerID  *int64
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	WithLines bool
}

type AdminUpdate struct {
	Name         *string
	Address      *string
	Role         *domain.Role
	Permissions  *domain.Permissions
	PasswordHash *string
}

// LedgerTx is the set of row-level operations the ledger engine composes
// inside one transaction. Lock methods hold the row until the transaction
// ends.
type LedgerTx interface {
	GetWorker(ctx context.Context, id int64) (domain.Worker, error)
	GetVendor(ctx context.Context, id int64) (domain.Vendor, error)

	LockProduct(ctx context.Context, id int64) (domain.Product, error)
	LockProductByName(ctx context.Context, name string) (domain.Product, error)
	InsertProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error)
	// AdjustStock adds delta to a product quantity. A negative delta that
	// would drive the quantity below zero changes nothing and returns
	// domain.ErrInsufficientStock.
	AdjustStock(ctx context.Context, productID int64, delta int) error

	InsertSalesReceipt(ctx context.Context, receipt domain.SalesReceipt) (int64, error)
	InsertSalesReceiptLine(ctx context.Context, line domain.SalesReceiptLine) (int64, error)
	LockSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error)
	LockSalesReceiptLine(ctx context.Context, lineID int64) (domain.SalesReceiptLine, error)
	SetSalesReceiptLineQuantity(ctx context.Context, lineID int64, quantity int) error
	DeleteSalesReceiptLine(ctx context.Context, lineID int64) error
	SumSalesReceiptLines(ctx context.Context, receiptID int64) (decimal.Decimal, int, error)
	UpdateSalesReceiptTotals(ctx context.Context, id int64, total decimal.Decimal, status domain.PaymentStatus) error

	InsertPurchaseReceipt(ctx context.Context, receipt domain.PurchaseReceipt) (int64, error)
	InsertPurchaseReceiptLine(ctx context.Context, line domain.PurchaseReceiptLine) (int64, error)
	UpdatePurchaseReceiptTotal(ctx context.Context, id int64, total decimal.Decimal) error

	LockLegacySale(ctx context.Context, id int64) (domain.LegacySale, error)
	SumLegacyReturned(ctx context.Context, saleID int64) (int, error)
	SetLegacySaleStatus(ctx context.Context, id int64, status string) error

	InsertReturn(ctx context.Context, ret domain.Return) (int64, error)
	LogAction(ctx context.Context, entry domain.ActionEntry) error
}

// Store is implemented by the Postgres repository and by the in-memory
// store used in tests.
type Store interface {
	// WithTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, including when ctx is done before commit.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error

	ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	CreateProduct(ctx context.Context, input ProductCreateInput) (domain.Product, error)
	PatchProduct(ctx context.Context, id int64, input ProductPatchInput) (domain.Product, error)
	ArchiveProduct(ctx context.Context, id int64) error
	// Restock adds delta to an active product in a single statement.
	Restock(ctx context.Context, id int64, delta int) (domain.Product, error)

	ListVendors(ctx context.Context) ([]domain.Vendor, error)
	CreateVendor(ctx context.Context, input VendorInput) (domain.Vendor, error)
	ArchiveVendor(ctx context.Context, id int64) error

	ListWorkers(ctx context.Context) ([]domain.Worker, error)
	GetWorker(ctx context.Context, id int64) (domain.Worker, error)
	CreateWorker(ctx context.Context, input WorkerInput) (domain.Worker, error)
	UpdateWorker(ctx context.Context, id int64, input WorkerInput) (domain.Worker, error)
	ArchiveWorker(ctx context.Context, id int64) error

	ListPurchaseReceipts(ctx context.Context, limit, offset int) ([]domain.PurchaseReceipt, error)
	GetPurchaseReceipt(ctx context.Context, id int64) (domain.PurchaseReceipt, error)

	ListSalesReceipts(ctx context.Context, filter SalesReceiptFilter) ([]domain.SalesReceipt, error)
	GetSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error)
	ListReturns(ctx context.Context, limit, offset int) ([]domain.Return, error)

	GetAdmin(ctx context.Context, id int64) (domain.AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (domain.AdminUser, error)
	ListAdmins(ctx context.Context) ([]domain.AdminUser, error)
	CreateAdmin(ctx context.Context, admin domain.AdminUser) (domain.AdminUser, error)
	UpdateAdmin(ctx context.Context, id int64, update AdminUpdate) (domain.AdminUser, error)
	DeleteAdmin(ctx context.Context, id int64) error
	CountSuperAdmins(ctx context.Context) (int, error)

	CreateInvitation(ctx context.Context, inv domain.Invitation) (domain.Invitation, error)
	// SignupWithInvitation consumes an unexpired invitation issued for
	// admin.Email and creates the admin in the same transaction.
	SignupWithInvitation(ctx context.Context, code string, admin domain.AdminUser, now time.Time) (domain.AdminUser, error)

	LogAction(ctx context.Context, entry domain.ActionEntry) error
	ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error)
	CountActions(ctx context.Context, search string) (int, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
