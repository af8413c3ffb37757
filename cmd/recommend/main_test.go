package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testCatalog = `[
  {"id": "1", "name": "Laptop", "price": 999, "category": "electronics", "tags": ["work", "portable"]},
  {"id": "2", "name": "Tablet", "price": 499, "category": "electronics", "tags": ["portable"]},
  {"id": "3", "name": "Desk", "price": 199, "category": "home", "tags": ["work"]},
  {"id": "4", "name": "Sofa", "price": 899, "category": "home", "tags": ["comfort"]}
]`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(testCatalog), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRecommendByIndex(t *testing.T) {
	path := writeCatalog(t)

	got, err := execute(t, "--catalog", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Recommendations for \"Laptop\":\n1. Tablet (Score: 2)\n2. Desk (Score: 1)\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommendByProductID(t *testing.T) {
	path := writeCatalog(t)

	got, err := execute(t, "--catalog", path, "--product", "4", "--limit", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Recommendations for \"Sofa\":\n1. Desk (Score: 1)\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommendErrors(t *testing.T) {
	path := writeCatalog(t)

	if _, err := execute(t, "--catalog", path, "--product", "missing"); err == nil {
		t.Fatal("expected error for unknown product")
	}
	if _, err := execute(t, "--catalog", path, "--index", "10"); err == nil {
		t.Fatal("expected error for index out of range")
	}
	if _, err := execute(t, "--catalog", filepath.Join(t.TempDir(), "products.csv")); err == nil {
		t.Fatal("expected error for unsupported catalog")
	}
}
