package handlers

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/models"
)

const (
	exportTypeItems      = "items"
	exportTypeCategories = "categories"
)

const timeLayout = time.RFC3339

// ExportCSV выгружает корзину в CSV: построчно или с группировкой по категориям.
func (h *CartHandler) ExportCSV(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	exportType := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
	if exportType == "" {
		exportType = exportTypeItems
	}

	lines, err := h.Carts.List(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	switch exportType {
	case exportTypeItems:
		if err := writeCartCSV(writer, lines, h.Currency); err != nil {
			return serverError(c)
		}
	case exportTypeCategories:
		if err := writeCategoriesCSV(writer, lines, h.Currency); err != nil {
			return serverError(c)
		}
	default:
		return badRequest(c, "invalid export type")
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return serverError(c)
	}

	filename := "cart-" + exportType + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func writeCartCSV(writer *csv.Writer, lines []models.CartLine, currency string) error {
	header := []string{
		"product_id",
		"name",
		"category",
		"price",
		"quantity",
		"subtotal",
		"currency",
		"added_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, line := range lines {
		record := []string{
			line.Product.ID,
			line.Product.Name,
			line.Product.Category,
			formatMoney(line.Product.Price),
			formatInt(line.Item.Quantity),
			formatMoney(line.Subtotal()),
			currency,
			line.Item.AddedAt.Format(timeLayout),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeCategoriesCSV(writer *csv.Writer, lines []models.CartLine, currency string) error {
	if err := writer.Write([]string{"category", "items", "subtotal", "currency"}); err != nil {
		return err
	}

	type categoryTotal struct {
		items    int
		subtotal float64
	}
	totals := make(map[string]*categoryTotal)
	for _, line := range lines {
		total, ok := totals[line.Product.Category]
		if !ok {
			total = &categoryTotal{}
			totals[line.Product.Category] = total
		}
		total.items += line.Item.Quantity
		total.subtotal += line.Subtotal()
	}

	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		total := totals[category]
		record := []string{category, formatInt(total.items), formatMoney(total.subtotal), currency}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func formatMoney(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}
