package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/subosito/gotenv"
)

// DefaultDataURL is the public Uber pickups sample for September 2014.
const DefaultDataURL = "https://s3-us-west-2.amazonaws.com/streamlit-demo-data/uber-raw-data-sep14.csv.gz"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset loading.
	DataURL         string
	DateColumn      string
	RowLimit        int
	DefaultHour     int
	FetchTimeout    time.Duration
	LoaderCacheSize int

	// Remote table store. Credentials are validated by the client, not here,
	// so commands that never query the store can run without them.
	SupabaseURL      string
	SupabaseKey      string
	SupabaseTable    string
	SupabaseRowLimit int
	SupabaseTimeout  time.Duration

	// Trip export.
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int
	ExportHour   *int // nil exports every trip
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables from the optional .env file are loaded first and never override
// values already present in the process environment.
func Load() (*Config, error) {
	if err := loadDotEnv(sharedcfg.EnvOrDefault("DOTENV_PATH", ".env")); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	supabaseTimeout, err := parseDuration("SUPABASE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	rowLimit, err := parsePositiveInt("ROW_LIMIT", 10000)
	if err != nil {
		return nil, err
	}
	supabaseRowLimit, err := parsePositiveInt("SUPABASE_ROW_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	defaultHour, err := parseHour("DEFAULT_HOUR", 17)
	if err != nil {
		return nil, err
	}
	var exportHour *int
	if os.Getenv("EXPORT_HOUR") != "" {
		h, err := parseHour("EXPORT_HOUR", 0)
		if err != nil {
			return nil, err
		}
		exportHour = &h
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataURL:         strings.TrimSpace(sharedcfg.EnvOrDefault("DATA_URL", DefaultDataURL)),
		DateColumn:      strings.ToLower(strings.TrimSpace(sharedcfg.EnvOrDefault("DATE_COLUMN", "date/time"))),
		RowLimit:        rowLimit,
		DefaultHour:     defaultHour,
		FetchTimeout:    fetchTimeout,
		LoaderCacheSize: parseLoaderCacheSize(),

		SupabaseURL:      strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseKey:      strings.TrimSpace(os.Getenv("SUPABASE_KEY")),
		SupabaseTable:    sharedcfg.EnvOrDefault("SUPABASE_TABLE", "eagles_offense"),
		SupabaseRowLimit: supabaseRowLimit,
		SupabaseTimeout:  supabaseTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "uber-pickups"),
		BatchSize:    batchSize,
		ExportHour:   exportHour,
	}

	switch cfg.LogFormat {
	case "json", "text", "tint":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: json, text, tint)", cfg.LogFormat)
	}
	if cfg.DataURL == "" {
		return nil, errors.New("DATA_URL is required")
	}
	if cfg.DateColumn == "" {
		return nil, errors.New("DATE_COLUMN is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseHour(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 23 {
		return 0, fmt.Errorf("invalid %s %q: must be between 0 and 23", key, s)
	}
	return n, nil
}

func parseLoaderCacheSize() int {
	if s := os.Getenv("LOADER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 8
}
