// Command brokerd runs the paper-trading brokerage API.
//
// Usage:
//
//	brokerd --config config.yaml
//	brokerd (uses CLI arguments)
//
// Optional environment variables (also read from .env):
//
//	POSTGRES_DSN  — postgres connection string for --storage=postgres
//	QUOTE_API_KEY — token for the external quote service
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/papertrade/brokerd/config"
	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/engine"
	"github.com/papertrade/brokerd/internal/events"
	eventskafka "github.com/papertrade/brokerd/internal/events/kafka"
	"github.com/papertrade/brokerd/internal/services/quote"
	"github.com/papertrade/brokerd/internal/storage"
	"github.com/papertrade/brokerd/internal/storage/journal"
	"github.com/papertrade/brokerd/internal/storage/memory"
	"github.com/papertrade/brokerd/internal/storage/postgres"
	"github.com/papertrade/brokerd/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer cleanup()

	publisher := buildPublisher(cfg, logger)
	eng := engine.New(store, publisher, logger)
	provider := buildQuoteProvider(cfg, logger)

	srv := web.NewServer(cfg.Listen, eng, store, provider, cfg.StartingCash, logger)
	logger.Info("brokerd listening",
		zap.String("addr", cfg.Listen),
		zap.String("storage", cfg.Storage))

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		dsn := cfg.PostgresDSN
		if dsn == "" {
			dsn = os.Getenv("POSTGRES_DSN")
		}
		if dsn == "" {
			return nil, nil, errors.New("postgres storage requires a DSN (--postgres-dsn or POSTGRES_DSN)")
		}

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return store, func() { _ = db.Close() }, nil
	default:
		j, err := journal.Open(cfg.JournalDir)
		if err != nil {
			return nil, nil, err
		}

		store, err := memory.NewStoreWithJournal(j)
		if err != nil {
			_ = j.Close()
			return nil, nil, err
		}

		logger.Info("memory storage ready", zap.String("journal", cfg.JournalDir))
		return store, func() { _ = j.Close() }, nil
	}
}

func buildPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}

	logger.Info("kafka trade events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	return eventskafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func buildQuoteProvider(cfg config.Config, logger *zap.Logger) quote.Provider {
	if cfg.QuoteBaseURL != "" {
		apiKey := cfg.QuoteAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("QUOTE_API_KEY")
		}
		return quote.NewHTTPProvider(cfg.QuoteBaseURL, apiKey, cfg.QuoteTimeout)
	}

	logger.Warn("no quote service configured, serving static demo quotes")
	return quote.NewStaticProvider(
		domain.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromFloat(189.30)},
		domain.Quote{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.NewFromFloat(412.10)},
		domain.Quote{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.NewFromFloat(610.55)},
		domain.Quote{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.NewFromFloat(178.25)},
	)
}
