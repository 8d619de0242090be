package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"shopmanager/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"name":         "name",
	"product":      "name",
	"product name": "name",
	"item":         "name",
	"product id":   "product_id",
	"id":           "product_id",
	"description":  "description",
	"details":      "description",
	"quantity":     "quantity",
	"qty":          "quantity",
	"cost price":   "cost_price",
	"cost":         "cost_price",
	"buy price":    "cost_price",
	"retail price": "cost_price",
	"sell price":   "sell_price",
	"sale price":   "sell_price",
	"price":        "sell_price",
}

// ParsePurchaseRows reads purchase receipt lines from the first sheet of an
// .xlsx workbook or from a CSV file. The first row is the header; rows with
// neither a name nor a product id are skipped.
func ParsePurchaseRows(reader io.Reader, fileName string) ([]domain.PurchaseLineInput, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	case ".xlsx", ".xlsm":
		rows, err = parseExcelRows(data)
	default:
		rows, err = parseExcelRows(data)
		if err != nil {
			rows, err = parseCSVRows(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return parsePurchaseTable(rows)
}

func parsePurchaseTable(rows [][]string) ([]domain.PurchaseLineInput, error) {
	colMap := mapColumns(rows[0])
	_, hasName := colMap["name"]
	_, hasID := colMap["product_id"]
	if !hasName && !hasID {
		return nil, fmt.Errorf("missing required column: name or product_id")
	}
	for _, required := range []string{"quantity", "cost_price"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.PurchaseLineInput, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		line := domain.PurchaseLineInput{
			Name:        strings.TrimSpace(readOptionalCell(cells, colMap, "name")),
			Description: strings.TrimSpace(readOptionalCell(cells, colMap, "description")),
		}
		if raw := strings.TrimSpace(readOptionalCell(cells, colMap, "product_id")); raw != "" {
			id, err := parseInt(raw)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("row %d invalid product_id %q", index+1, raw)
			}
			line.ProductID = int64(id)
		}
		if line.Name == "" && line.ProductID == 0 {
			continue
		}

		qty, err := parseInt(readCell(cells, colMap["quantity"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid quantity: %w", index+1, err)
		}
		line.Quantity = qty

		line.CostPrice, err = parseMoney(readCell(cells, colMap["cost_price"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid cost_price: %w", index+1, err)
		}
		if raw := strings.TrimSpace(readOptionalCell(cells, colMap, "sell_price")); raw != "" {
			line.SellPrice, err = parseMoney(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid sell_price: %w", index+1, err)
			}
		}
		result = append(result, line)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid data rows")
	}
	return result, nil
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readOptionalCell(row []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return readCell(row, idx)
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("value is empty")
	}
	parsed, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return parsed, nil
}
