package config

import (
	"reflect"
	"strings"
	"testing"
)

// TestParseCSVEnv проверяет разбор списка email из ENV.
func TestParseCSVEnv(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", " Admin@example.com, ,USER@Example.com ")

	got := parseCSVEnv("ADMIN_EMAILS")
	want := []string{"admin@example.com", "user@example.com"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestParseCSVEnvMissing проверяет поведение при отсутствии переменной.
func TestParseCSVEnvMissing(t *testing.T) {
	got := parseCSVEnv("MISSING_ENV")
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

// TestParseBoolEnv проверяет разбор булевых флагов.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("CATALOG_SEED_ON_START", "false")

	got, err := parseBoolEnv("CATALOG_SEED_ON_START", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Fatal("expected false")
	}

	t.Setenv("CATALOG_SEED_ON_START", "maybe")
	if _, err := parseBoolEnv("CATALOG_SEED_ON_START", true); err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}

// TestLoadDefaults проверяет значения по умолчанию для каталога и валюты.
func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_PROVIDER", "groq")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("CATALOG_PATH", "testdata/catalog.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Currency != "EUR" {
		t.Fatalf("expected EUR, got %s", cfg.Currency)
	}
	if cfg.Catalog.Path != "testdata/catalog.yaml" {
		t.Fatalf("unexpected catalog path %s", cfg.Catalog.Path)
	}
	if cfg.AI.Model != "llama-3.1-8b-instant" {
		t.Fatalf("unexpected groq default model %s", cfg.AI.Model)
	}
}

// TestLoadRejectsUnknownProvider проверяет валидацию провайдера AI.
func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_PROVIDER", "openai")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

// TestValidateReportsAllErrors проверяет, что validate перечисляет все нарушения.
func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Host: "localhost", User: "shopmate", Name: "shopmate", MaxOpenConns: 10, MaxIdleConns: 5},
		AI:       AIConfig{Provider: ProviderGroq, Model: "m"},
		Currency: "USD",
	}
	if err := cfg.validate(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}

	cfg.Currency = "DOLLARS"
	cfg.AI.Provider = "openai"
	err := cfg.validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"JWT_SECRET", "AI_PROVIDER", "CURRENCY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

// TestDSN проверяет строку подключения к Postgres.
func TestDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "shop", Password: "p@ss", Name: "shopmate", SSLMode: "disable"}

	want := "postgres://shop:p%40ss@db:5432/shopmate?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

// TestLoadRejectsBadInteger проверяет ошибку разбора числовой переменной.
func TestLoadRejectsBadInteger(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "eighty")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Fatalf("expected SERVER_PORT error, got %v", err)
	}
}
