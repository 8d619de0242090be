package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"shopmanager/internal/auth"
	"shopmanager/internal/domain"
	"shopmanager/internal/repository"

	"github.com/shopspring/decimal"
)

type Options struct {
	InviteTTL time.Duration
}

type Service struct {
	store     repository.Store
	tokens    *auth.TokenManager
	inviteTTL time.Duration
	now       func() time.Time
}

func New(store repository.Store, tokens *auth.TokenManager, opts Options) *Service {
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 24 * time.Hour
	}
	return &Service{store: store, tokens: tokens, inviteTTL: opts.InviteTTL, now: time.Now}
}

func (s *Service) ListProducts(ctx context.Context, filter repository.ProductListFilter) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, input repository.ProductCreateInput) (domain.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Name == "" {
		return domain.Product{}, domain.NewValidationError("name is required")
	}
	if input.Quantity < 0 {
		return domain.Product{}, domain.NewValidationError("quantity must not be negative")
	}
	if err := checkQuantity("quantity", input.Quantity); err != nil {
		return domain.Product{}, err
	}
	if err := checkAmount("retail_price", input.RetailPrice); err != nil {
		return domain.Product{}, err
	}
	if err := checkAmount("sell_price", input.SellPrice); err != nil {
		return domain.Product{}, err
	}

	product, err := s.store.CreateProduct(ctx, input)
	if err != nil {
		return domain.Product{}, err
	}
	s.audit(ctx, actor, "product", "Create product "+product.Name,
		fmt.Sprintf("product=%d quantity=%d", product.ID, product.Quantity))
	return product, nil
}

func (s *Service) PatchProduct(ctx context.Context, actor domain.Actor, id int64, input repository.ProductPatchInput) (domain.Product, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return domain.Product{}, domain.NewValidationError("name must not be empty")
	}
	if input.RetailPrice != nil {
		if err := checkAmount("retail_price", *input.RetailPrice); err != nil {
			return domain.Product{}, err
		}
	}
	if input.SellPrice != nil {
		if err := checkAmount("sell_price", *input.SellPrice); err != nil {
			return domain.Product{}, err
		}
	}

	product, err := s.store.PatchProduct(ctx, id, input)
	if err != nil {
		return domain.Product{}, err
	}
	s.audit(ctx, actor, "product", "Update product "+product.Name, fmt.Sprintf("product=%d", product.ID))
	return product, nil
}

// ArchiveProduct hides a product from the catalogue. Receipts that
// reference it keep resolving.
func (s *Service) ArchiveProduct(ctx context.Context, actor domain.Actor, id int64) error {
	if err := s.store.ArchiveProduct(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "product", fmt.Sprintf("Archive product #%d", id), "")
	return nil
}

func (s *Service) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	return s.store.ListVendors(ctx)
}

func (s *Service) CreateVendor(ctx context.Context, actor domain.Actor, input repository.VendorInput) (domain.Vendor, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Contact = strings.TrimSpace(input.Contact)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = strings.TrimSpace(input.Address)
	if input.Name == "" {
		return domain.Vendor{}, domain.NewValidationError("name is required")
	}
	vendor, err := s.store.CreateVendor(ctx, input)
	if err != nil {
		return domain.Vendor{}, err
	}
	s.audit(ctx, actor, "vendor", "Create vendor "+vendor.Name, fmt.Sprintf("vendor=%d", vendor.ID))
	return vendor, nil
}

func (s *Service) ArchiveVendor(ctx context.Context, actor domain.Actor, id int64) error {
	if err := s.store.ArchiveVendor(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "vendor", fmt.Sprintf("Archive vendor #%d", id), "")
	return nil
}

func (s *Service) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	return s.store.ListWorkers(ctx)
}

func (s *Service) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	return s.store.GetWorker(ctx, id)
}

func (s *Service) CreateWorker(ctx context.Context, actor domain.Actor, input repository.WorkerInput) (domain.Worker, error) {
	input, err := normalizeWorker(input)
	if err != nil {
		return domain.Worker{}, err
	}
	worker, err := s.store.CreateWorker(ctx, input)
	if err != nil {
		return domain.Worker{}, err
	}
	s.audit(ctx, actor, "worker", "Create worker "+worker.Name, fmt.Sprintf("worker=%d", worker.ID))
	return worker, nil
}

func (s *Service) UpdateWorker(ctx context.Context, actor domain.Actor, id int64, input repository.WorkerInput) (domain.Worker, error) {
	input, err := normalizeWorker(input)
	if err != nil {
		return domain.Worker{}, err
	}
	worker, err := s.store.UpdateWorker(ctx, id, input)
	if err != nil {
		return domain.Worker{}, err
	}
	s.audit(ctx, actor, "worker", "Update worker "+worker.Name, fmt.Sprintf("worker=%d", worker.ID))
	return worker, nil
}

func (s *Service) ArchiveWorker(ctx context.Context, actor domain.Actor, id int64) error {
	if err := s.store.ArchiveWorker(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "worker", fmt.Sprintf("Archive worker #%d", id), "")
	return nil
}

func normalizeWorker(input repository.WorkerInput) (repository.WorkerInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.FatherName = strings.TrimSpace(input.FatherName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.CNIC = strings.TrimSpace(input.CNIC)
	input.Role = strings.TrimSpace(input.Role)
	input.Benefits = strings.TrimSpace(input.Benefits)
	if input.Name == "" {
		return input, domain.NewValidationError("name is required")
	}
	if err := checkAmount("salary", input.Salary); err != nil {
		return input, err
	}
	if err := checkAmount("bonus", input.Bonus); err != nil {
		return input, err
	}
	return input, nil
}

func (s *Service) ListPurchaseReceipts(ctx context.Context, limit, offset int) ([]domain.PurchaseReceipt, error) {
	return s.store.ListPurchaseReceipts(ctx, limit, offset)
}

func (s *Service) GetPurchaseReceipt(ctx context.Context, id int64) (domain.PurchaseReceipt, error) {
	return s.store.GetPurchaseReceipt(ctx, id)
}

func (s *Service) ListSalesReceipts(ctx context.Context, filter repository.SalesReceiptFilter) ([]domain.SalesReceipt, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, domain.NewValidationError("from must be before to")
	}
	return s.store.ListSalesReceipts(ctx, filter)
}

func (s *Service) GetSalesReceipt(ctx context.Context, id int64) (domain.SalesReceipt, error) {
	return s.store.GetSalesReceipt(ctx, id)
}

func (s *Service) ListReturns(ctx context.Context, limit, offset int) ([]domain.Return, error) {
	return s.store.ListReturns(ctx, limit, offset)
}

func (s *Service) ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	return s.store.ListActions(ctx, limit, offset, search)
}

func (s *Service) CountActions(ctx context.Context, search string) (int, error) {
	return s.store.CountActions(ctx, search)
}

// audit records a catalogue change. Failures are logged and do not undo the
// change they describe.
func (s *Service) audit(ctx context.Context, actor domain.Actor, actionType, title, details string) {
	if err := s.store.LogAction(ctx, domain.ActionEntry{
		AdminEmail: actor.Audit(),
		ActionType: actionType,
		Title:      title,
		Details:    details,
	}); err != nil {
		log.Printf("audit %s %q: %v", actionType, title, err)
	}
}

// Money columns are NUMERIC(14,2) and quantity columns are INTEGER.
var maxAmount = decimal.New(1, 12)

const maxQuantity = math.MaxInt32

// checkAmount rejects values the money columns would round or overflow.
func checkAmount(field string, value decimal.Decimal) error {
	switch {
	case value.IsNegative():
		return domain.NewValidationError(field + " must not be negative")
	case !value.Equal(value.Round(2)):
		return domain.NewValidationError(field + " must have at most 2 decimal places")
	case value.GreaterThanOrEqual(maxAmount):
		return domain.NewValidationError(field + " is too large")
	}
	return nil
}

func checkQuantity(field string, value int) error {
	if value > maxQuantity {
		return domain.NewValidationError(fmt.Sprintf("%s must not exceed %d", field, maxQuantity))
	}
	return nil
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
