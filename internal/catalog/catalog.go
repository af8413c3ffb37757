package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"example.com/ai-shopmate/backend/internal/models"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFromName определяет формат каталога по расширению файла.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrInvalidCatalog, filepath.Ext(name))
	}
}

// Load читает каталог из файла, выбирая загрузчик по расширению.
func Load(path string) ([]models.Product, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	return Parse(data, format)
}

// Parse разбирает и валидирует каталог из байтов.
func Parse(data []byte, format Format) ([]models.Product, error) {
	var (
		products []models.Product
		err      error
	)

	switch format {
	case FormatJSON:
		products, err = parseJSON(data)
	case FormatYAML:
		products, err = parseYAML(data)
	case FormatXLSX:
		products, err = parseXLSX(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidCatalog, format)
	}
	if err != nil {
		return nil, err
	}

	return normalize(products)
}

func normalize(products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no products", ErrInvalidCatalog)
	}

	seen := make(map[string]struct{}, len(products))
	out := make([]models.Product, 0, len(products))

	for i, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		p.Category = strings.ToLower(strings.TrimSpace(p.Category))
		p.ImageURL = strings.TrimSpace(p.ImageURL)

		if p.ID == "" {
			return nil, fmt.Errorf("%w: product %d: id is required", ErrInvalidCatalog, i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: product %d: duplicate id %q", ErrInvalidCatalog, i, p.ID)
		}
		seen[p.ID] = struct{}{}

		if p.Name == "" {
			return nil, fmt.Errorf("%w: product %q: name is required", ErrInvalidCatalog, p.ID)
		}
		if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return nil, fmt.Errorf("%w: product %q: invalid price", ErrInvalidCatalog, p.ID)
		}
		if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
			return nil, fmt.Errorf("%w: product %q: rating must be within 0..5", ErrInvalidCatalog, p.ID)
		}

		p.Tags = normalizeTags(p.Tags)
		out = append(out, p)
	}

	return out, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// splitTags разбирает строку тегов, разделенных ";" или ",".
func splitTags(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ','
	})
}

// parsePrice принимает цены вида "1299", "$1,299" и "1 299.50".
func parsePrice(raw string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, errors.New("empty price")
	}
	return strconv.ParseFloat(cleaned, 64)
}
