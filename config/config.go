// Package config loads the service configuration from a yaml file or
// CLI flags.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// StorageMemory keeps state in memory, made durable by the trade journal.
	StorageMemory = "memory"
	// StoragePostgres keeps state in PostgreSQL.
	StoragePostgres = "postgres"
)

// Config is the resolved service configuration.
type Config struct {
	Listen       string
	Storage      string
	PostgresDSN  string
	JournalDir   string
	QuoteBaseURL string
	QuoteAPIKey  string
	QuoteTimeout time.Duration
	StartingCash decimal.Decimal
	KafkaBrokers []string
	KafkaTopic   string
}

// configTmp mirrors Config with yaml-friendly field types; decimal
// values travel as strings.
type configTmp struct {
	Listen          string        `yaml:"listen"`
	Storage         string        `yaml:"storage"`
	PostgresDSN     string        `yaml:"postgres_dsn,omitempty"`
	JournalDir      string        `yaml:"journal_dir,omitempty"`
	QuoteBaseURL    string        `yaml:"quote_base_url,omitempty"`
	QuoteAPIKey     string        `yaml:"quote_api_key,omitempty"`
	QuoteTimeout    time.Duration `yaml:"quote_timeout,omitempty"`
	StartingCashStr string        `yaml:"starting_cash,omitempty"`
	KafkaBrokers    []string      `yaml:"kafka_brokers,omitempty"`
	KafkaTopic      string        `yaml:"kafka_topic,omitempty"`
}

// Get parses configuration from --config yaml when provided, CLI flags
// otherwise.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	listen := flag.String("listen", ":8080", "HTTP listen address")
	storageKind := flag.String("storage", StorageMemory, "storage backend: memory or postgres")
	postgresDSN := flag.String("postgres-dsn", "", "postgres connection string (or POSTGRES_DSN)")
	journalDir := flag.String("journal-dir", "./wal/trades", "trade journal directory for memory storage")
	quoteBaseURL := flag.String("quote-url", "", "base URL of the quote service; static quotes when empty")
	quoteTimeout := flag.Duration("quote-timeout", 5*time.Second, "quote service request timeout")
	startingCash := flag.String("starting-cash", "10000", "cash balance for newly created accounts")
	kafkaBrokers := flag.String("kafka-brokers", "", "comma-separated kafka brokers; events disabled when empty")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cash, err := decimal.NewFromString(*startingCash)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid --starting-cash=%s", *startingCash)
	}

	cfg := Config{
		Listen:       *listen,
		Storage:      *storageKind,
		PostgresDSN:  *postgresDSN,
		JournalDir:   *journalDir,
		QuoteBaseURL: *quoteBaseURL,
		QuoteTimeout: *quoteTimeout,
		StartingCash: cash,
		KafkaBrokers: splitList(*kafkaBrokers),
	}

	return cfg, cfg.validate()
}

func getYaml(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	cfg := Config{
		Listen:       tmp.Listen,
		Storage:      tmp.Storage,
		PostgresDSN:  tmp.PostgresDSN,
		JournalDir:   tmp.JournalDir,
		QuoteBaseURL: tmp.QuoteBaseURL,
		QuoteAPIKey:  tmp.QuoteAPIKey,
		QuoteTimeout: tmp.QuoteTimeout,
		KafkaBrokers: tmp.KafkaBrokers,
		KafkaTopic:   tmp.KafkaTopic,
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageMemory
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = "./wal/trades"
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = 5 * time.Second
	}

	cashStr := tmp.StartingCashStr
	if cashStr == "" {
		cashStr = "10000"
	}
	cfg.StartingCash, err = decimal.NewFromString(cashStr)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid starting_cash=%s", cashStr)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return errors.Errorf("unsupported storage backend %q", c.Storage)
	}

	if c.StartingCash.IsNegative() {
		return errors.Errorf("starting cash must not be negative, got %s", c.StartingCash)
	}

	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
