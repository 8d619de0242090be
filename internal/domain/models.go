package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Quantity    int             `json:"quantity"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p Product) Archived() bool {
	return p.ArchivedAt != nil
}

type Vendor struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Contact    string     `json:"contact"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Worker struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	FatherName  string          `json:"father_name"`
	Phone       string          `json:"phone"`
	CNIC        string          `json:"cnic"`
	Salary      decimal.Decimal `json:"salary"`
	Bonus       decimal.Decimal `json:"bonus"`
	Role        string          `json:"role"`
	JoiningDate *time.Time      `json:"joining_date,omitempty"`
	Benefits    string          `json:"benefits"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PurchaseReceipt struct {
	ID          int64                 `json:"id"`
	VendorID    int64                 `json:"vendor_id"`
	VendorName  string                `json:"vendor_name"`
	InvoiceNo   *string               `json:"invoice_no,omitempty"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	CreatedBy   *string               `json:"created_by,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Lines       []PurchaseReceiptLine `json:"lines,omitempty"`
}

type PurchaseReceiptLine struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
}

// PurchaseLineInput identifies its product by ProductID when set, otherwise
// by exact Name. A name with no active product creates one.
type PurchaseLineInput struct {
	ProductID   int64           `json:"product_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
}

type PurchaseReceiptInput struct {
	VendorID  int64               `json:"vendor_id"`
	InvoiceNo *string             `json:"invoice_no,omitempty"`
	Lines     []PurchaseLineInput `json:"items"`
}

type PurchaseReceiptResult struct {
	ReceiptID       int64           `json:"receipt_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedProducts int             `json:"created_products"`
}

type SalesReceipt struct {
	ID            int64              `json:"id"`
	WorkerID      int64              `json:"worker_id"`
	WorkerName    string             `json:"worker_name"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone *string            `json:"customer_phone,omitempty"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	LineCount     int                `json:"line_count"`
	CreatedBy     *string            `json:"created_by,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Lines         []SalesReceiptLine `json:"lines,omitempty"`
}

type SalesReceiptLine struct {
	ID          int64           `json:"id"`
	ReceiptID   int64           `json:"receipt_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	SoldPrice   decimal.Decimal `json:"sold_price"`
}

func (l SalesReceiptLine) LineTotal() decimal.Decimal {
	return l.SoldPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type SalesLineInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	SoldPrice decimal.Decimal `json:"sold_price"`
}

type SaleReceiptInput struct {
	WorkerID      int64            `json:"worker_id"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone *string          `json:"customer_phone,omitempty"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Lines         []SalesLineInput `json:"items"`
}

type SaleReceiptResult struct {
	ReceiptID   int64           `json:"receipt_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type ReturnResult struct {
	ReturnID       int64           `json:"return_id"`
	ReceiptID      int64           `json:"receipt_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	RemainingLines int             `json:"remaining_lines"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
}

type Return struct {
	ID                 int64           `json:"id"`
	SalesReceiptID     *int64          `json:"sales_receipt_id,omitempty"`
	SalesReceiptLineID *int64          `json:"sales_receipt_line_id,omitempty"`
	SaleID             *int64          `json:"sale_id,omitempty"`
	ProductID          int64           `json:"product_id"`
	ProductName        string          `json:"product_name"`
	WorkerID           *int64          `json:"worker_id,omitempty"`
	Quantity           int             `json:"quantity"`
	Reason             string          `json:"reason"`
	ReturnedAmount     decimal.Decimal `json:"returned_amount"`
	CreatedAt          time.Time       `json:"created_at"`
}

// LegacySale is a flat single-product sale kept only for records created
// before sales receipts existed.
type LegacySale struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"product_id"`
	WorkerID          int64           `json:"worker_id"`
	Quantity          int             `json:"quantity"`
	SoldPrice         decimal.Decimal `json:"sold_price"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentStatus     string          `json:"payment_status"`
	MigratedReceiptID *int64          `json:"migrated_receipt_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type LegacyReturnInput struct {
	SaleID    int64  `json:"sale_id"`
	ProductID int64  `json:"product_id"`
	WorkerID  int64  `json:"worker_id,omitempty"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
}

type LegacyReturnResult struct {
	ReturnID         int64  `json:"return_id"`
	SaleID           int64  `json:"sale_id"`
	ReturnedQuantity int    `json:"returned_quantity"`
	PaymentStatus    string `json:"payment_status"`
}

const (
	LegacySalePaid     = "paid"
	LegacySaleReturned = "returned"
)

type AdminUser struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         Role        `json:"role"`
	Address      string      `json:"address"`
	Permissions  Permissions `json:"permissions"`
	IsVerified   bool        `json:"is_verified"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (a AdminUser) Actor() Actor {
	return Actor{AdminID: a.ID, Email: a.Email, Role: a.Role, Permissions: a.Permissions}
}

// Actor is the authenticated admin on whose behalf an operation runs.
type Actor struct {
	AdminID     int64
	Email       string
	Role        Role
	Permissions Permissions
}

func (a Actor) Can(p Permission) bool {
	return a.Role == RoleSuperAdmin || a.Permissions.Has(p)
}

// Audit returns the actor email as stored on created_by columns.
func (a Actor) Audit() *string {
	if a.Email == "" {
		return nil
	}
	email := a.Email
	return &email
}

type Invitation struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Code       string     `json:"code"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedBy  *string    `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ActionEntry struct {
	ActionID   int64     `json:"action_id"`
	CreatedAt  time.Time `json:"created_at"`
	AdminEmail *string   `json:"admin_email,omitempty"`
	ActionType string    `json:"action_type"`
	Title      string    `json:"title"`
	Details    string    `json:"details"`
}
