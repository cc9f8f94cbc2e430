package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/api"
	"github.com/skyviewcafe/atlas/internal/config"
	"github.com/skyviewcafe/atlas/internal/database"
	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/remote"
	"github.com/skyviewcafe/atlas/internal/repository"
	"github.com/skyviewcafe/atlas/internal/seeder"
	"github.com/skyviewcafe/atlas/internal/service"
	"github.com/skyviewcafe/atlas/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(context.Background(), cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to database", zap.String("type", string(cfg.DB.Type)))

	ctx := context.Background()
	// Run migrations
	if err := runMigrations(db, cfg); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	gaz := gazetteer.New(logger, cfg.Atlas.DataDir, cfg.Atlas.FlagDir, cfg.Atlas.FlagIndexURL)
	if err := gaz.Load(); err != nil {
		logger.Fatal("Failed to load gazetteer data", zap.Error(err))
	}

	repos := repository.NewRepositories(db, gaz, logger)

	count, err := seeder.Count(ctx, db)
	if err != nil {
		logger.Warn("Failed to check if database is empty", zap.Error(err))
	} else if count == 0 {
		logger.Info("Database is empty, auto-seeding data...")
		if err := autoSeedDatabase(ctx, db, gaz, cfg, logger); err != nil {
			logger.Fatal("Failed to auto-seed database", zap.Error(err))
		}
		logger.Info("Database seeded successfully")
	}

	geonames := remote.NewGeonames(cfg.Atlas.GeonamesURL, cfg.Atlas.GeonamesUser,
		cfg.Atlas.GeonamesTimeout, gaz, logger)
	getty := remote.NewGetty(cfg.Atlas.GettyURL, cfg.Atlas.GettyTimeout,
		cfg.Atlas.GettySoftLimit, gaz, logger)

	svc := service.NewService(repos, gaz, geonames, getty, logger)
	statsCollector := stats.NewCollector(db, cfg.DB)
	router := api.NewRouter(svc, statsCollector)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Atlas.GettyTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func runMigrations(db *sqlx.DB, cfg *config.Config) error {
	var m *migrate.Migrate
	var err error

	// Choose migration source based on DB type
	sourcePath := "file://migrations/postgres"

	if cfg.DB.IsMemory() {
		sourcePath = "file://migrations/sqlite"
		// Use driver instance directly to avoid DSN parsing issues with in-memory SQLite
		driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("could not create sqlite driver: %w", err)
		}
		m, err = migrate.NewWithDatabaseInstance(
			sourcePath,
			"sqlite3",
			driver,
		)
		if err != nil {
			return fmt.Errorf("could not create migrate instance: %w", err)
		}
	} else {
		// For Postgres, standard connection string works fine
		m, err = migrate.New(sourcePath, cfg.DB.DSN())
		if err != nil {
			return err
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func autoSeedDatabase(ctx context.Context, db *sqlx.DB, gaz *gazetteer.Gazetteer, cfg *config.Config, logger *zap.Logger) error {
	parser := seeder.NewParser(cfg.Atlas.DataDir, cfg.Seeder)

	logger.Info("Parsing countries...")
	countries, err := parser.ParseCountries()
	if err != nil {
		return fmt.Errorf("failed to parse countries: %w", err)
	}

	logger.Info("Parsing places...")
	places, err := parser.ParsePlaces()
	if err != nil {
		return fmt.Errorf("failed to parse places: %w", err)
	}

	logger.Info("Inserting places...", zap.Int("count", len(places)))
	written, err := seeder.New(db, gaz, logger, cfg.Seeder.BatchSize).Run(ctx, places, countries)
	if err != nil {
		return fmt.Errorf("failed to insert places: %w", err)
	}
	logger.Info("Inserted places", zap.Int("written", written))

	return nil
}
