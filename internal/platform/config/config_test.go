package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"VARIANTS_FIRESTORE_PROJECT_ID": "catalog-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Firestore.ProductsCollection != "products" {
		t.Errorf("unexpected products collection: %s", cfg.Firestore.ProductsCollection)
	}
	if cfg.PubSub.ProjectID != "catalog-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.SavedTopic != defaultSavedTopic {
		t.Errorf("unexpected saved topic: %s", cfg.PubSub.SavedTopic)
	}
	if cfg.Save.ResetPolicy != "submitted" {
		t.Errorf("expected submitted reset policy, got %s", cfg.Save.ResetPolicy)
	}
	if cfg.Save.Timeout != 30*time.Second {
		t.Errorf("unexpected save timeout: %s", cfg.Save.Timeout)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"VARIANTS_LOG_LEVEL":                     "DEBUG",
		"VARIANTS_FIRESTORE_PROJECT_ID":          "catalog-prod",
		"VARIANTS_FIRESTORE_EMULATOR_HOST":       "localhost:8081",
		"VARIANTS_FIRESTORE_PRODUCTS_COLLECTION": "catalog_products",
		"VARIANTS_PUBSUB_PROJECT_ID":             "events-prod",
		"VARIANTS_PUBSUB_SAVED_TOPIC":            "catalog.variations",
		"VARIANTS_STORAGE_MEDIA_BUCKET":          "catalog-media",
		"VARIANTS_STORAGE_PUBLIC_BASE_URL":       "https://cdn.example.com/",
		"VARIANTS_SAVE_RESET_POLICY":             "all",
		"VARIANTS_SAVE_TIMEOUT":                  "45s",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected lower-cased log level, got %s", cfg.Log.Level)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8081" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Firestore.ProductsCollection != "catalog_products" {
		t.Errorf("unexpected collection: %s", cfg.Firestore.ProductsCollection)
	}
	if cfg.PubSub.ProjectID != "events-prod" || cfg.PubSub.SavedTopic != "catalog.variations" {
		t.Errorf("unexpected pubsub config: %+v", cfg.PubSub)
	}
	if cfg.Storage.MediaBucket != "catalog-media" {
		t.Errorf("unexpected media bucket: %s", cfg.Storage.MediaBucket)
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Storage.PublicBaseURL)
	}
	if cfg.Save.ResetPolicy != "all" || cfg.Save.Timeout != 45*time.Second {
		t.Errorf("unexpected save config: %+v", cfg.Save)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"VARIANTS_LOG_LEVEL":               "verbose",
		"VARIANTS_SAVE_RESET_POLICY":       "sometimes",
		"VARIANTS_SAVE_TIMEOUT":            "soon",
		"VARIANTS_STORAGE_PUBLIC_BASE_URL": "cdn.example.com",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	want := map[string]bool{
		"Log.Level":             true,
		"Firestore.ProjectID":   true,
		"Storage.PublicBaseURL": true,
		"Save.ResetPolicy":      true,
		"Save.Timeout":          true,
	}
	fields := vErr.Fields()
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields: %v", fields)
	}
	for _, field := range fields {
		if !want[field] {
			t.Errorf("unexpected field %s in %v", field, fields)
		}
	}
}

func TestLoadFromDotEnvWithPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\n" +
		"export VARIANTS_FIRESTORE_PROJECT_ID=\"from-dotenv\"\n" +
		"VARIANTS_PUBSUB_SAVED_TOPIC='dotenv-topic'\n" +
		"not a pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"VARIANTS_PUBSUB_SAVED_TOPIC": "explicit-topic"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "from-dotenv" {
		t.Errorf("expected project from .env, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.SavedTopic != "explicit-topic" {
		t.Errorf("expected explicit map to win, got %s", cfg.PubSub.SavedTopic)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"VARIANTS_FIRESTORE_PROJECT_ID": "p"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}
