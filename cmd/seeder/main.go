package main

import (
	"context"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/config"
	"github.com/skyviewcafe/atlas/internal/database"
	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/seeder"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.Connect(context.Background(), cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	logger.Info("Connected to database", zap.String("type", string(cfg.DB.Type)))
	logger.Info("Starting data import...")

	ctx := context.Background()
	// Auto-migrate if using memory DB to ensure schema exists
	if cfg.DB.IsMemory() {
		m, err := migrate.New("file://migrations/sqlite", "sqlite3://"+cfg.DB.DSN())
		if err != nil {
			logger.Fatal("Failed to init migration", zap.Error(err))
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			logger.Fatal("Failed to run migration", zap.Error(err))
		}
	}

	gaz := gazetteer.New(logger, cfg.Atlas.DataDir, cfg.Atlas.FlagDir, cfg.Atlas.FlagIndexURL)
	if err := gaz.Load(); err != nil {
		logger.Fatal("Failed to load gazetteer data", zap.Error(err))
	}

	parser := seeder.NewParser(cfg.Atlas.DataDir, cfg.Seeder)

	logger.Info("Parsing countries...")
	countries, err := parser.ParseCountries()
	if err != nil {
		logger.Fatal("Failed to parse countries", zap.Error(err))
	}

	logger.Info("Parsing places...")
	places, err := parser.ParsePlaces()
	if err != nil {
		logger.Fatal("Failed to parse places", zap.Error(err))
	}

	// Seeded rows carry source 0, so re-running replaces the base layer only
	if _, err := db.ExecContext(ctx, "DELETE FROM atlas2 WHERE source = 0"); err != nil {
		logger.Fatal("Failed to clear seeded rows", zap.Error(err))
	}

	logger.Info("Inserting places...", zap.Int("parsed", len(places)))
	written, err := seeder.New(db, gaz, logger, cfg.Seeder.BatchSize).Run(ctx, places, countries)
	if err != nil {
		logger.Fatal("Failed to insert places", zap.Error(err))
	}

	logger.Info("Data import completed", zap.Int("written", written))
}
