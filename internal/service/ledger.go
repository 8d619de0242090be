package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"shopmanager/internal/domain"
	"shopmanager/internal/excel"
	"shopmanager/internal/repository"

	"github.com/shopspring/decimal"
)

// RecordSaleReceipt creates a receipt and its lines, decrementing stock for
// each line. Either every line is recorded or nothing is.
func (s *Service) RecordSaleReceipt(ctx context.Context, actor domain.Actor, input domain.SaleReceiptInput) (domain.SaleReceiptResult, error) {
	status, err := domain.ParseCheckoutStatus(string(input.PaymentStatus))
	if err != nil {
		return domain.SaleReceiptResult{}, err
	}
	customer := strings.TrimSpace(input.CustomerName)
	if customer == "" {
		return domain.SaleReceiptResult{}, domain.NewValidationError("customer_name is required")
	}
	if input.WorkerID <= 0 {
		return domain.SaleReceiptResult{}, domain.NewValidationError("worker_id is required")
	}
	if len(input.Lines) == 0 {
		return domain.SaleReceiptResult{}, domain.NewValidationError("at least one item is required")
	}
	total := decimal.Zero
	for i, line := range input.Lines {
		switch {
		case line.ProductID <= 0:
			return domain.SaleReceiptResult{}, domain.NewValidationError(fmt.Sprintf("items[%d]: product_id is required", i))
		case line.Quantity <= 0:
			return domain.SaleReceiptResult{}, domain.NewValidationError(fmt.Sprintf("items[%d]: quantity must be positive", i))
		case !line.SoldPrice.IsPositive():
			return domain.SaleReceiptResult{}, domain.NewValidationError(fmt.Sprintf("items[%d]: sold_price must be positive", i))
		}
		if err := checkQuantity(fmt.Sprintf("items[%d]: quantity", i), line.Quantity); err != nil {
			return domain.SaleReceiptResult{}, err
		}
		if err := checkAmount(fmt.Sprintf("items[%d]: sold_price", i), line.SoldPrice); err != nil {
			return domain.SaleReceiptResult{}, err
		}
		total = total.Add(line.SoldPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if err := checkAmount("total_amount", total); err != nil {
		return domain.SaleReceiptResult{}, err
	}

	var result domain.SaleReceiptResult
	err = s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		if _, err := tx.GetWorker(ctx, input.WorkerID); err != nil {
			return err
		}

		receiptID, err := tx.InsertSalesReceipt(ctx, domain.SalesReceipt{
			WorkerID:      input.WorkerID,
			PaymentStatus: status,
			CustomerName:  customer,
			CustomerPhone: normalizeNullable(input.CustomerPhone),
			TotalAmount:   decimal.Zero,
			CreatedBy:     actor.Audit(),
		})
		if err != nil {
			return err
		}

		for _, line := range input.Lines {
			product, err := tx.LockProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product.Archived() {
				return domain.NewNotFoundError("product", line.ProductID)
			}
			if product.Quantity < line.Quantity {
				return insufficientStock(product, line.Quantity)
			}

			if _, err := tx.InsertSalesReceiptLine(ctx, domain.SalesReceiptLine{
				ReceiptID: receiptID,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				SoldPrice: line.SoldPrice,
			}); err != nil {
				return err
			}
			if err := tx.AdjustStock(ctx, product.ID, -line.Quantity); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					return insufficientStock(product, line.Quantity)
				}
				return err
			}
		}

		if err := tx.UpdateSalesReceiptTotals(ctx, receiptID, total, status); err != nil {
			return err
		}
		if err := tx.LogAction(ctx, domain.ActionEntry{
			AdminEmail: actor.Audit(),
			ActionType: "sale",
			Title:      fmt.Sprintf("Sales receipt #%d", receiptID),
			Details:    fmt.Sprintf("customer=%s lines=%d total=%s status=%s", customer, len(input.Lines), total.StringFixed(2), status),
		}); err != nil {
			return err
		}

		result = domain.SaleReceiptResult{ReceiptID: receiptID, TotalAmount: total}
		return nil
	})
	if err != nil {
		return domain.SaleReceiptResult{}, err
	}
	return result, nil
}

// ReturnReceiptLine takes quantity units of one receipt line back into
// stock. A receipt whose last line is returned ends in the terminal
// "all product got removed" status with a zero total.
func (s *Service) ReturnReceiptLine(ctx context.Context, actor domain.Actor, receiptID, lineID int64, quantity int, reason string) (domain.ReturnResult, error) {
	if quantity < 1 {
		return domain.ReturnResult{}, domain.NewValidationError("quantity must be at least 1")
	}
	reason = strings.TrimSpace(reason)

	var result domain.ReturnResult
	err := s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		receipt, err := tx.LockSalesReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		line, err := tx.LockSalesReceiptLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.ReceiptID != receiptID {
			return domain.NewNotFoundError("receipt item", lineID)
		}
		if quantity > line.Quantity {
			return domain.NewConflictError(fmt.Sprintf(
				"cannot return %d units of item %d: only %d remain on the receipt", quantity, lineID, line.Quantity))
		}

		if quantity == line.Quantity {
			err = tx.DeleteSalesReceiptLine(ctx, lineID)
		} else {
			err = tx.SetSalesReceiptLineQuantity(ctx, lineID, line.Quantity-quantity)
		}
		if err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, line.ProductID, quantity); err != nil {
			return err
		}

		workerID := receipt.WorkerID
		returnID, err := tx.InsertReturn(ctx, domain.Return{
			SalesReceiptID:     &receiptID,
			SalesReceiptLineID: &lineID,
			ProductID:          line.ProductID,
			WorkerID:           &workerID,
			Quantity:           quantity,
			Reason:             reason,
			ReturnedAmount:     line.SoldPrice.Mul(decimal.NewFromInt(int64(quantity))),
		})
		if err != nil {
			return err
		}

		total, remaining, err := tx.SumSalesReceiptLines(ctx, receiptID)
		if err != nil {
			return err
		}
		status := receipt.PaymentStatus
		if remaining == 0 {
			status = domain.PaymentAllRemoved
			total = decimal.Zero
		}
		if err := tx.UpdateSalesReceiptTotals(ctx, receiptID, total, status); err != nil {
			return err
		}
		if err := tx.LogAction(ctx, domain.ActionEntry{
			AdminEmail: actor.Audit(),
			ActionType: "return",
			Title:      fmt.Sprintf("Return on sales receipt #%d", receiptID),
			Details:    fmt.Sprintf("item=%d product=%d quantity=%d remaining_lines=%d reason=%s", lineID, line.ProductID, quantity, remaining, reason),
		}); err != nil {
			return err
		}

		result = domain.ReturnResult{
			ReturnID:       returnID,
			ReceiptID:      receiptID,
			TotalAmount:    total,
			RemainingLines: remaining,
			PaymentStatus:  status,
		}
		return nil
	})
	if err != nil {
		return domain.ReturnResult{}, err
	}
	return result, nil
}

// RecordPurchaseReceipt books a vendor delivery. Lines name an existing
// product by id, or by exact name; an unknown name creates the product with
// the delivered quantity as opening stock.
func (s *Service) RecordPurchaseReceipt(ctx context.Context, actor domain.Actor, input domain.PurchaseReceiptInput) (domain.PurchaseReceiptResult, error) {
	if input.VendorID <= 0 {
		return domain.PurchaseReceiptResult{}, domain.NewValidationError("vendor_id is required")
	}
	if len(input.Lines) == 0 {
		return domain.PurchaseReceiptResult{}, domain.NewValidationError("at least one item is required")
	}
	lines := make([]domain.PurchaseLineInput, len(input.Lines))
	total := decimal.Zero
	for i, line := range input.Lines {
		line.Name = strings.TrimSpace(line.Name)
		line.Description = strings.TrimSpace(line.Description)
		switch {
		case line.ProductID <= 0 && line.Name == "":
			return domain.PurchaseReceiptResult{}, domain.NewValidationError(fmt.Sprintf("items[%d]: product_id or name is required", i))
		case line.Quantity <= 0:
			return domain.PurchaseReceiptResult{}, domain.NewValidationError(fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if err := checkQuantity(fmt.Sprintf("items[%d]: quantity", i), line.Quantity); err != nil {
			return domain.PurchaseReceiptResult{}, err
		}
		if err := checkAmount(fmt.Sprintf("items[%d]: cost_price", i), line.CostPrice); err != nil {
			return domain.PurchaseReceiptResult{}, err
		}
		if err := checkAmount(fmt.Sprintf("items[%d]: sell_price", i), line.SellPrice); err != nil {
			return domain.PurchaseReceiptResult{}, err
		}
		total = total.Add(line.CostPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		lines[i] = line
	}
	if err := checkAmount("total_amount", total); err != nil {
		return domain.PurchaseReceiptResult{}, err
	}

	var result domain.PurchaseReceiptResult
	err := s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		vendor, err := tx.GetVendor(ctx, input.VendorID)
		if err != nil {
			return err
		}
		receiptID, err := tx.InsertPurchaseReceipt(ctx, domain.PurchaseReceipt{
			VendorID:    vendor.ID,
			InvoiceNo:   normalizeNullable(input.InvoiceNo),
			TotalAmount: decimal.Zero,
			CreatedBy:   actor.Audit(),
		})
		if err != nil {
			return err
		}

		created := 0
		for _, line := range lines {
			productID, isNew, err := receiveLine(ctx, tx, line)
			if err != nil {
				return err
			}
			if isNew {
				created++
			}
			if _, err := tx.InsertPurchaseReceiptLine(ctx, domain.PurchaseReceiptLine{
				ReceiptID: receiptID,
				ProductID: productID,
				Quantity:  line.Quantity,
				CostPrice: line.CostPrice,
				SellPrice: line.SellPrice,
			}); err != nil {
				return err
			}
		}

		if err := tx.UpdatePurchaseReceiptTotal(ctx, receiptID, total); err != nil {
			return err
		}
		if err := tx.LogAction(ctx, domain.ActionEntry{
			AdminEmail: actor.Audit(),
			ActionType: "purchase",
			Title:      fmt.Sprintf("Purchase receipt #%d from %s", receiptID, vendor.Name),
			Details:    fmt.Sprintf("lines=%d new_products=%d total=%s", len(lines), created, total.StringFixed(2)),
		}); err != nil {
			return err
		}

		result = domain.PurchaseReceiptResult{ReceiptID: receiptID, TotalAmount: total, CreatedProducts: created}
		return nil
	})
	if err != nil {
		return domain.PurchaseReceiptResult{}, err
	}
	return result, nil
}

func receiveLine(ctx context.Context, tx repository.LedgerTx, line domain.PurchaseLineInput) (int64, bool, error) {
	if line.ProductID > 0 {
		product, err := tx.LockProduct(ctx, line.ProductID)
		if err != nil {
			return 0, false, err
		}
		if product.Archived() {
			return 0, false, domain.NewNotFoundError("product", line.ProductID)
		}
		return product.ID, false, tx.AdjustStock(ctx, product.ID, line.Quantity)
	}

	product, err := tx.LockProductByName(ctx, line.Name)
	if errors.Is(err, domain.ErrNotFound) {
		product, err = tx.InsertProduct(ctx, repository.ProductCreateInput{
			Name:        line.Name,
			Description: line.Description,
			RetailPrice: line.CostPrice,
			SellPrice:   line.SellPrice,
			Quantity:    line.Quantity,
		})
		if err != nil {
			return 0, false, err
		}
		return product.ID, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	return product.ID, false, tx.AdjustStock(ctx, product.ID, line.Quantity)
}

// Restock adds delta units to an active product outside any receipt.
func (s *Service) Restock(ctx context.Context, actor domain.Actor, productID int64, delta int) (domain.Product, error) {
	if delta <= 0 {
		return domain.Product{}, domain.NewValidationError("quantity must be positive")
	}
	if err := checkQuantity("quantity", delta); err != nil {
		return domain.Product{}, err
	}
	product, err := s.store.Restock(ctx, productID, delta)
	if err != nil {
		return domain.Product{}, err
	}
	s.audit(ctx, actor, "restock", fmt.Sprintf("Restock %s", product.Name),
		fmt.Sprintf("product=%d added=%d quantity=%d", product.ID, delta, product.Quantity))
	return product, nil
}

// LegacyReturn returns units of a flat sale recorded before sales receipts.
// Sales already converted into receipts must be returned through the
// receipt line instead.
func (s *Service) LegacyReturn(ctx context.Context, actor domain.Actor, input domain.LegacyReturnInput) (domain.LegacyReturnResult, error) {
	if input.Quantity < 1 {
		return domain.LegacyReturnResult{}, domain.NewValidationError("quantity must be at least 1")
	}
	if input.ProductID <= 0 {
		return domain.LegacyReturnResult{}, domain.NewValidationError("product_id is required")
	}
	reason := strings.TrimSpace(input.Reason)

	var result domain.LegacyReturnResult
	err := s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		sale, err := tx.LockLegacySale(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.MigratedReceiptID != nil {
			return domain.NewConflictError(fmt.Sprintf(
				"sale %d was migrated to sales receipt %d; return against the receipt item", sale.ID, *sale.MigratedReceiptID))
		}
		if sale.ProductID != input.ProductID {
			return domain.NewValidationError(fmt.Sprintf("product %d does not belong to sale %d", input.ProductID, sale.ID))
		}
		if input.WorkerID != 0 && input.WorkerID != sale.WorkerID {
			return domain.NewValidationError(fmt.Sprintf("worker %d did not make sale %d", input.WorkerID, sale.ID))
		}

		returned, err := tx.SumLegacyReturned(ctx, sale.ID)
		if err != nil {
			return err
		}
		if returned+input.Quantity > sale.Quantity {
			return domain.NewConflictError(fmt.Sprintf(
				"cannot return %d units of sale %d: %d of %d already returned", input.Quantity, sale.ID, returned, sale.Quantity))
		}

		saleID := sale.ID
		workerID := sale.WorkerID
		returnID, err := tx.InsertReturn(ctx, domain.Return{
			SaleID:         &saleID,
			ProductID:      sale.ProductID,
			WorkerID:       &workerID,
			Quantity:       input.Quantity,
			Reason:         reason,
			ReturnedAmount: sale.SoldPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
		})
		if err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, sale.ProductID, input.Quantity); err != nil {
			return err
		}

		status := sale.PaymentStatus
		if returned+input.Quantity >= sale.Quantity {
			status = domain.LegacySaleReturned
			if err := tx.SetLegacySaleStatus(ctx, sale.ID, status); err != nil {
				return err
			}
		}
		if err := tx.LogAction(ctx, domain.ActionEntry{
			AdminEmail: actor.Audit(),
			ActionType: "return",
			Title:      fmt.Sprintf("Return on sale #%d", sale.ID),
			Details:    fmt.Sprintf("product=%d quantity=%d reason=%s", sale.ProductID, input.Quantity, reason),
		}); err != nil {
			return err
		}

		result = domain.LegacyReturnResult{
			ReturnID:         returnID,
			SaleID:           sale.ID,
			ReturnedQuantity: returned + input.Quantity,
			PaymentStatus:    status,
		}
		return nil
	})
	if err != nil {
		return domain.LegacyReturnResult{}, err
	}
	return result, nil
}

// UpdateSalesReceiptStatus moves a receipt between paid, pending and hold.
func (s *Service) UpdateSalesReceiptStatus(ctx context.Context, actor domain.Actor, receiptID int64, raw string) (domain.SalesReceipt, error) {
	status, err := domain.ParseStatusUpdate(raw)
	if err != nil {
		return domain.SalesReceipt{}, err
	}

	err = s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		receipt, err := tx.LockSalesReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		if receipt.PaymentStatus.Terminal() {
			return domain.NewConflictError(fmt.Sprintf("sales receipt %d has no items left; its status cannot change", receiptID))
		}
		if err := tx.UpdateSalesReceiptTotals(ctx, receiptID, receipt.TotalAmount, status); err != nil {
			return err
		}
		return tx.LogAction(ctx, domain.ActionEntry{
			AdminEmail: actor.Audit(),
			ActionType: "sale_status",
			Title:      fmt.Sprintf("Sales receipt #%d status", receiptID),
			Details:    fmt.Sprintf("%s -> %s", receipt.PaymentStatus, status),
		})
	})
	if err != nil {
		return domain.SalesReceipt{}, err
	}
	return s.store.GetSalesReceipt(ctx, receiptID)
}

func insufficientStock(p domain.Product, requested int) error {
	return &domain.InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Available:   p.Quantity,
		Requested:   requested,
	}
}

// ImportPurchaseReceipt books a purchase receipt from an uploaded .xlsx or
// CSV sheet.
func (s *Service) ImportPurchaseReceipt(ctx context.Context, actor domain.Actor, vendorID int64, invoiceNo *string, file io.Reader, fileName string) (domain.PurchaseReceiptResult, error) {
	lines, err := excel.ParsePurchaseRows(file, fileName)
	if err != nil {
		return domain.PurchaseReceiptResult{}, domain.NewValidationError(err.Error())
	}
	return s.RecordPurchaseReceipt(ctx, actor, domain.PurchaseReceiptInput{
		VendorID:  vendorID,
		InvoiceNo: invoiceNo,
		Lines:     lines,
	})
}
