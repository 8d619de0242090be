package excel

import (
	"fmt"
	"io"

	"shopmanager/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
	timeLayout    = "2006-01-02 15:04"
)

var (
	receiptHeader = []interface{}{"Receipt", "Date", "Customer", "Phone", "Worker", "Status", "Items", "Total"}
	itemHeader    = []interface{}{"Receipt", "Item", "Product", "Quantity", "Sold price", "Line total"}
)

// WriteSalesReceipts renders receipts as a workbook with one sheet of
// receipt headers and one sheet of their remaining items.
func WriteSalesReceipts(w io.Writer, receipts []domain.SalesReceipt) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := file.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(file, receiptsSheet, 1, receiptHeader); err != nil {
		return err
	}
	if err := writeRow(file, itemsSheet, 1, itemHeader); err != nil {
		return err
	}
	for _, sheet := range []string{receiptsSheet, itemsSheet} {
		if err := file.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		if err := file.SetColWidth(sheet, "A", "H", 16); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	itemRow := 2
	for i, r := range receipts {
		phone := ""
		if r.CustomerPhone != nil {
			phone = *r.CustomerPhone
		}
		total, _ := r.TotalAmount.Float64()
		row := []interface{}{
			r.ID,
			r.CreatedAt.Format(timeLayout),
			r.CustomerName,
			phone,
			r.WorkerName,
			string(r.PaymentStatus),
			r.LineCount,
			total,
		}
		if err := writeRow(file, receiptsSheet, i+2, row); err != nil {
			return err
		}

		for _, line := range r.Lines {
			price, _ := line.SoldPrice.Float64()
			lineTotal, _ := line.LineTotal().Float64()
			if err := writeRow(file, itemsSheet, itemRow, []interface{}{
				r.ID, line.ID, line.ProductName, line.Quantity, price, lineTotal,
			}); err != nil {
				return err
			}
			itemRow++
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
