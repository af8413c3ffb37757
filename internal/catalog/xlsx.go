package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"example.com/ai-shopmate/backend/internal/models"
)

var xlsxColumns = []string{"id", "name", "price", "category", "tags", "rating", "image"}

// parseXLSX читает первый лист. Первая строка: заголовок с именами колонок.
func parseXLSX(data []byte) ([]models.Product, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrInvalidCatalog, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx has no sheets", ErrInvalidCatalog)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrInvalidCatalog, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: xlsx has no data rows", ErrInvalidCatalog)
	}

	columns := mapColumns(rows[0])
	for _, required := range []string{"id", "name", "price"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCatalog, required)
		}
	}

	products := make([]models.Product, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isEmptyRow(row) {
			continue
		}

		price, err := parsePrice(cell(row, columns, "price"))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: price: %v", ErrInvalidCatalog, rowNum, err)
		}

		product := models.Product{
			ID:       cell(row, columns, "id"),
			Name:     cell(row, columns, "name"),
			Price:    price,
			Category: cell(row, columns, "category"),
			Tags:     splitTags(cell(row, columns, "tags")),
			ImageURL: cell(row, columns, "image"),
		}

		if raw := cell(row, columns, "rating"); raw != "" {
			rating, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: rating: %v", ErrInvalidCatalog, rowNum, err)
			}
			product.Rating = &rating
		}

		products = append(products, product)
	}

	return products, nil
}

func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		for _, known := range xlsxColumns {
			if key == known {
				columns[key] = i
			}
		}
	}
	return columns
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
