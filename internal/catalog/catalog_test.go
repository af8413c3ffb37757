package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"example.com/ai-shopmate/backend/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

// TestParseJSON проверяет числовые id, цены строкой и нормализацию тегов.
func TestParseJSON(t *testing.T) {
	data := []byte(`[
		{"id": 1, "name": "Summer Dress", "price": "$1,299", "category": "Fashion", "tags": ["Red", "dress", "red "], "rating": 4.4},
		{"id": "sku-2", "name": " Lamp ", "price": 79.5, "category": "home", "tags": ["lamp"]}
	]`)

	got, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []models.Product{
		{ID: "1", Name: "Summer Dress", Price: 1299, Category: "fashion", Tags: []string{"red", "dress"}, Rating: floatPtr(4.4)},
		{ID: "sku-2", Name: "Lamp", Price: 79.5, Category: "home", Tags: []string{"lamp"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
}

// TestParseYAML проверяет обе формы YAML-документа.
func TestParseYAML(t *testing.T) {
	list := []byte(`
- id: "1"
  name: Jacket
  price: 199
  category: fashion
  tags: [winter, coat]
`)
	wrapped := []byte(`
products:
  - id: "1"
    name: Jacket
    price: 199
    category: fashion
    tags: [winter, coat]
`)

	want := []models.Product{
		{ID: "1", Name: "Jacket", Price: 199, Category: "fashion", Tags: []string{"winter", "coat"}},
	}

	for name, data := range map[string][]byte{"list": list, "wrapped": wrapped} {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(data, FormatYAML)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("products mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParseXLSX проверяет чтение таблицы с заголовком.
func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"ID", "Name", "Price", "Category", "Tags", "Rating"},
		{"1", "Coffee Maker", "149", "home", "kitchen; coffee", "4.7"},
		{"", "", "", "", "", ""},
		{"2", "Garden Tools", "$89", "home", "garden,tools", ""},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cellName, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	got, err := Parse(buf.Bytes(), FormatXLSX)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []models.Product{
		{ID: "1", Name: "Coffee Maker", Price: 149, Category: "home", Tags: []string{"kitchen", "coffee"}, Rating: floatPtr(4.7)},
		{ID: "2", Name: "Garden Tools", Price: 89, Category: "home", Tags: []string{"garden", "tools"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
}

// TestParseRejectsInvalidProducts проверяет ошибки валидации.
func TestParseRejectsInvalidProducts(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: `[]`},
		{name: "missing id", data: `[{"name": "a", "price": 1}]`},
		{name: "duplicate id", data: `[{"id": 1, "name": "a", "price": 1}, {"id": "1", "name": "b", "price": 2}]`},
		{name: "missing name", data: `[{"id": 1, "price": 1}]`},
		{name: "negative price", data: `[{"id": 1, "name": "a", "price": -1}]`},
		{name: "bad price", data: `[{"id": 1, "name": "a", "price": "cheap"}]`},
		{name: "rating out of range", data: `[{"id": 1, "name": "a", "price": 1, "rating": 7}]`},
		{name: "not a list", data: `{"id": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatJSON)
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

// TestLoadByExtension проверяет выбор загрузчика по расширению файла.
func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "products.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"id": 1, "name": "a", "price": 1, "category": "x", "tags": ["t"]}]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	products, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(products) != 1 || products[0].ID != "1" {
		t.Fatalf("unexpected products: %+v", products)
	}

	if _, err := Load(filepath.Join(dir, "products.csv")); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog for csv, got %v", err)
	}
}

func TestFormatFromName(t *testing.T) {
	cases := map[string]Format{
		"a.json":       FormatJSON,
		"b.YAML":       FormatYAML,
		"c.yml":        FormatYAML,
		"catalog.xlsx": FormatXLSX,
	}
	for name, want := range cases {
		got, err := FormatFromName(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}
