package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/ai-shopmate/backend/internal/models"
)

// jsonProduct допускает числовые id и цены строкой ("$1,299").
type jsonProduct struct {
	ID       json.RawMessage `json:"id"`
	Name     string          `json:"name"`
	Price    json.RawMessage `json:"price"`
	Category string          `json:"category"`
	Tags     []string        `json:"tags"`
	Rating   *float64        `json:"rating"`
	Image    string          `json:"image"`
}

func parseJSON(data []byte) ([]models.Product, error) {
	var raw []jsonProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCatalog, err)
	}

	products := make([]models.Product, 0, len(raw))
	for i, item := range raw {
		id, err := scalarString(item.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d: id: %v", ErrInvalidCatalog, i, err)
		}

		price, err := scalarString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d: price: %v", ErrInvalidCatalog, i, err)
		}
		parsedPrice, err := parsePrice(price)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d: price: %v", ErrInvalidCatalog, i, err)
		}

		products = append(products, models.Product{
			ID:       id,
			Name:     item.Name,
			Price:    parsedPrice,
			Category: item.Category,
			Tags:     item.Tags,
			Rating:   item.Rating,
			ImageURL: item.Image,
		})
	}

	return products, nil
}

// scalarString возвращает JSON-строку или число в виде строки.
func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", strings.TrimSpace(string(trimmed)))
	}
	return n.String(), nil
}
