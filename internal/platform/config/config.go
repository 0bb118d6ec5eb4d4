package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultLogLevel           = "info"
	defaultProductsCollection = "products"
	defaultSavedTopic         = "variations.saved"
	defaultResetPolicy        = "submitted"
	defaultSaveTimeout        = 30 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Log       LogConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Storage   StorageConfig
	Save      SaveConfig
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	ProductsCollection string
}

// PubSubConfig configures the save event publisher. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID  string
	SavedTopic string
}

// StorageConfig names the bucket holding variation media.
type StorageConfig struct {
	MediaBucket   string
	PublicBaseURL string
}

// SaveConfig tunes the save flow.
type SaveConfig struct {
	ResetPolicy string
	Timeout     time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration by combining defaults, .env overrides and environment variables.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "VARIANTS_LOG_LEVEL", defaultLogLevel)),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "VARIANTS_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "VARIANTS_FIRESTORE_EMULATOR_HOST", ""),
			ProductsCollection: stringWithDefault(lookup, "VARIANTS_FIRESTORE_PRODUCTS_COLLECTION", defaultProductsCollection),
		},
		PubSub: PubSubConfig{
			ProjectID:  stringWithDefault(lookup, "VARIANTS_PUBSUB_PROJECT_ID", ""),
			SavedTopic: stringWithDefault(lookup, "VARIANTS_PUBSUB_SAVED_TOPIC", defaultSavedTopic),
		},
		Storage: StorageConfig{
			MediaBucket:   stringWithDefault(lookup, "VARIANTS_STORAGE_MEDIA_BUCKET", ""),
			PublicBaseURL: strings.TrimRight(stringWithDefault(lookup, "VARIANTS_STORAGE_PUBLIC_BASE_URL", ""), "/"),
		},
		Save: SaveConfig{
			ResetPolicy: strings.ToLower(stringWithDefault(lookup, "VARIANTS_SAVE_RESET_POLICY", defaultResetPolicy)),
			Timeout:     durationWithDefault(lookup, "VARIANTS_SAVE_TIMEOUT", defaultSaveTimeout),
		},
	}

	// Pub/Sub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		missing = append(missing, "Log.Level")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.Contains(strings.Trim(cfg.Firestore.ProductsCollection, "/"), "/") || strings.TrimSpace(cfg.Firestore.ProductsCollection) == "" {
		missing = append(missing, "Firestore.ProductsCollection")
	}
	if cfg.Storage.PublicBaseURL != "" && !strings.HasPrefix(cfg.Storage.PublicBaseURL, "https://") && !strings.HasPrefix(cfg.Storage.PublicBaseURL, "http://") {
		missing = append(missing, "Storage.PublicBaseURL")
	}
	switch cfg.Save.ResetPolicy {
	case "submitted", "all":
	default:
		missing = append(missing, "Save.ResetPolicy")
	}
	if cfg.Save.Timeout <= 0 {
		missing = append(missing, "Save.Timeout")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// durationWithDefault keeps an unparsable value visible to validation as a zero duration.
func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return d
}
