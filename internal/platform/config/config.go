package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultBatchSize       = 200
	defaultPageSize        = 20
	defaultMaxPageSize     = 50
	defaultListingLifetime = 30 * 24 * time.Hour
	defaultFavoriteLimit   = 200

	defaultSessionTTL    = 2 * time.Hour
	defaultSweepInterval = 10 * time.Minute

	defaultEventsTopic = "listing-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Listings  ListingsConfig
	Wizard    WizardConfig
	Events    EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig lists bucket names used by the application.
type StorageConfig struct {
	ImagesBucket   string
	SignerEmail    string
	SignerKeyFile  string
	UploadURLValid time.Duration
}

// CatalogConfig controls where the category tree is loaded from. An empty
// file path falls back to the embedded default tree.
type CatalogConfig struct {
	File string
}

// ListingsConfig bounds the query pipeline and listing lifecycle.
type ListingsConfig struct {
	BatchSize     int
	PageSize      int
	MaxPageSize   int
	Lifetime      time.Duration
	FavoriteLimit int
}

// WizardConfig controls wizard session lifecycle.
type WizardConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// EventsConfig configures the Pub/Sub publisher for listing events.
type EventsConfig struct {
	ProjectID string
	Topic     string
	Disabled  bool
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

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
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
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			ImagesBucket:   stringWithDefault(lookup, "API_STORAGE_IMAGES_BUCKET", ""),
			SignerEmail:    stringWithDefault(lookup, "API_STORAGE_SIGNER_EMAIL", ""),
			SignerKeyFile:  stringWithDefault(lookup, "API_STORAGE_SIGNER_KEY_FILE", ""),
			UploadURLValid: durationWithDefault(lookup, "API_STORAGE_UPLOAD_URL_VALID", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			File: stringWithDefault(lookup, "API_CATALOG_FILE", ""),
		},
		Listings: ListingsConfig{
			BatchSize:     intWithDefault(lookup, "API_LISTINGS_BATCH_SIZE", defaultBatchSize),
			PageSize:      intWithDefault(lookup, "API_LISTINGS_PAGE_SIZE", defaultPageSize),
			MaxPageSize:   intWithDefault(lookup, "API_LISTINGS_MAX_PAGE_SIZE", defaultMaxPageSize),
			Lifetime:      durationWithDefault(lookup, "API_LISTINGS_LIFETIME", defaultListingLifetime),
			FavoriteLimit: intWithDefault(lookup, "API_LISTINGS_FAVORITE_LIMIT", defaultFavoriteLimit),
		},
		Wizard: WizardConfig{
			SessionTTL:    durationWithDefault(lookup, "API_WIZARD_SESSION_TTL", defaultSessionTTL),
			SweepInterval: durationWithDefault(lookup, "API_WIZARD_SWEEP_INTERVAL", defaultSweepInterval),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "API_EVENTS_TOPIC", defaultEventsTopic),
			Disabled:  boolWithDefault(lookup, "API_EVENTS_DISABLED", false),
		},
	}

	// Firestore and events projects default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Storage.ImagesBucket == "" {
		missing = append(missing, "Storage.ImagesBucket")
	}
	if cfg.Listings.BatchSize <= 0 {
		missing = append(missing, "Listings.BatchSize")
	}
	if cfg.Listings.PageSize <= 0 {
		missing = append(missing, "Listings.PageSize")
	}
	if cfg.Listings.MaxPageSize < cfg.Listings.PageSize {
		missing = append(missing, "Listings.MaxPageSize")
	}
	if cfg.Listings.Lifetime <= 0 {
		missing = append(missing, "Listings.Lifetime")
	}
	if cfg.Wizard.SessionTTL <= 0 {
		missing = append(missing, "Wizard.SessionTTL")
	}
	if cfg.Wizard.SweepInterval <= 0 {
		missing = append(missing, "Wizard.SweepInterval")
	}
	if !cfg.Events.Disabled && strings.TrimSpace(cfg.Events.Topic) == "" {
		missing = append(missing, "Events.Topic")
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
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
