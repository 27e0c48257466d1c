package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crosscare/exchange/internal/config"
	"github.com/crosscare/exchange/internal/domain/patientview"
	"github.com/crosscare/exchange/internal/domain/terminology"
	"github.com/crosscare/exchange/internal/platform/cda"
	"github.com/crosscare/exchange/internal/platform/db"
	"github.com/crosscare/exchange/internal/platform/fhir"
	"github.com/crosscare/exchange/internal/platform/middleware"
	"github.com/crosscare/exchange/pkg/cdm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "exchange-server",
		Short: "Cross-border clinical document exchange server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the exchange API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [files...]",
		Short: "Parse clinical document files into one merged patient view",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			country, _ := cmd.Flags().GetString("country")
			language, _ := cmd.Flags().GetString("language")
			return runParse(args, country, language)
		},
	}
	cmd.Flags().String("country", "", "ISO country of the issuing state")
	cmd.Flags().String("language", "en", "Preferred display language")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run terminology store migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			if err := migrator.EnsureMigrationsTable(ctx); err != nil {
				return err
			}
			migrations, err := migrator.LoadMigrations()
			if err != nil {
				return err
			}
			applied, err := migrator.AppliedVersions(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
			for _, m := range migrations {
				status := "pending"
				if applied[m.Version] {
					status = "applied"
				}
				fmt.Printf("%-10d %-40s %s\n", m.Version, m.Name, status)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildAssembly wires the terminology resolver, the two format parsers, and
// the merge service from config. The returned pool is nil when no
// terminology store is configured.
func buildAssembly(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*patientview.Service, *terminology.Resolver, *pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var repo terminology.Repository
	if cfg.HasDatabase() {
		p, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect terminology store: %w", err)
		}
		pool = p
		repo = terminology.NewRepoPG(pool)
		logger.Info().Msg("connected to terminology store")
	} else {
		logger.Warn().Msg("no DATABASE_URL configured, terminology resolution uses the embedded fallback table only")
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, nil, nil, err
	}
	cache := terminology.NewCache(terminology.DefaultShardCount, ttl)
	resolver := terminology.NewResolver(repo, cache, cfg.TerminologyTimeout(), logger)

	fieldMap, err := cda.Load(cfg.FieldMapFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load field map: %w", err)
	}
	extractor := cda.NewExtractor(fieldMap, resolver, logger)
	classifier := fhir.NewClassifier(resolver, logger)

	svc := patientview.NewService(extractor.Extract, classifier.Classify, cfg.ParseTimeout(), logger)
	return svc, resolver, pool, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	svc, resolver, pool, err := buildAssembly(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	if pool != nil {
		defer pool.Close()
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(middleware.BodyLimit("1M", "20M"))

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := apiV1.Group("/fhir")

	patientview.NewHandler(svc).RegisterRoutes(apiV1)
	terminology.NewHandler(resolver).RegisterRoutes(fhirGroup)

	// Health check
	e.GET("/healthz", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runParse normalizes document files offline and prints the merged view as
// JSON on stdout.
func runParse(paths []string, country, language string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, _, pool, err := buildAssembly(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	docs := make([]cdm.ClinicalDocument, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, cdm.ClinicalDocument{
			ID:       uuid.New(),
			Content:  content,
			Country:  country,
			Language: language,
		})
	}

	view, err := svc.Assemble(ctx, docs)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
