package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/mchms/internal/config"
	"github.com/ehr/mchms/internal/domain/mchms"
	"github.com/ehr/mchms/internal/domain/metadata"
	"github.com/ehr/mchms/internal/platform/db"
	"github.com/ehr/mchms/internal/platform/metrics"
	"github.com/ehr/mchms/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mchms-server",
		Short: "MCH-MS HIV testing cohort calculation service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(evaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the calculation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", db.SchemaFor("default"), "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", db.SchemaFor("default"), "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaFor(name))
			if err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a cohort once and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetString("patients")
			cohortFile, _ := cmd.Flags().GetString("cohort-file")
			stageFlag, _ := cmd.Flags().GetString("stage")
			result, _ := cmd.Flags().GetString("result")
			asOfFlag, _ := cmd.Flags().GetString("as-of")
			tenant, _ := cmd.Flags().GetString("tenant")

			var file io.Reader
			if cohortFile != "" {
				f, err := os.Open(cohortFile)
				if err != nil {
					return fmt.Errorf("open cohort file: %w", err)
				}
				defer f.Close()
				file = f
			}
			cohort, err := parseCohort(patients, file)
			if err != nil {
				return err
			}
			if len(cohort) == 0 {
				return fmt.Errorf("--patients or --cohort-file is required")
			}
			stage, err := mchms.ParseStage(stageFlag)
			if err != nil {
				return err
			}
			asOf, err := mchms.ParseAsOf(asOfFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			logger := newLogger(cfg, os.Stderr)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.EvaluationTimeout)
			defer cancel()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := buildService(cfg, pool, nil, logger)
			if err != nil {
				return err
			}

			var eval *mchms.Evaluation
			err = db.WithTenant(ctx, pool, tenant, func(ctx context.Context) error {
				var err error
				eval, err = svc.Evaluate(ctx, mchms.EvaluationRequest{
					Cohort: cohort,
					Stage:  stage,
					Result: mchms.ResultCode(result),
					AsOf:   asOf,
				})
				return err
			})
			if err != nil {
				return err
			}
			return writeEvaluation(cmd.OutOrStdout(), eval)
		},
	}
	cmd.Flags().String("patients", "", "Comma-separated patient UUIDs")
	cmd.Flags().String("cohort-file", "", "File with one patient UUID per line")
	cmd.Flags().String("stage", "", "Pregnancy stage (BEFORE_ENROLLMENT, ANTENATAL, DELIVERY, POSTNATAL, AFTER_ENROLLMENT; empty for any)")
	cmd.Flags().String("result", "", "Required HIV status code (empty for any)")
	cmd.Flags().String("as-of", "", "Calculation instant (default now)")
	cmd.Flags().String("tenant", "", "Tenant identifier (default DEFAULT_TENANT)")
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, err := buildService(cfg, pool, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure calculation")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, db.TenantHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler(reg))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit))
	apiV1.Use(middleware.RequestTimeout(cfg.EvaluationTimeout))
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	mchms.NewHandler(svc).RegisterRoutes(apiV1)

	// Serve until SIGINT/SIGTERM, then drain in-flight evaluations.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newLogger returns a JSON logger, or a console logger in development, at the
// configured level. Unknown levels fall back to info.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// buildService wires the calculation against the record tables in pool. The
// dictionary comes from METADATA_FILE when set, otherwise from the program and
// concept tables.
func buildService(cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics, logger zerolog.Logger) (*mchms.Service, error) {
	var store metadata.Store
	if cfg.MetadataFile != "" {
		fs, err := metadata.LoadFile(cfg.MetadataFile)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("file", cfg.MetadataFile).Msg("using metadata file")
		store = fs
	} else {
		store = metadata.NewStorePG(pool)
	}

	agg := mchms.NewAggregator(
		mchms.NewAliveFilterPG(pool),
		mchms.NewEnrollmentLookupPG(pool),
		mchms.NewObservationLookupPG(pool),
		m,
		logger,
	)
	return mchms.NewService(metadata.NewService(store), agg, m, logger), nil
}

// parseCohort merges a comma-separated id list with a newline-separated id
// file. Blank lines and lines starting with '#' are skipped.
func parseCohort(list string, file io.Reader) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	add := func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") {
			return nil
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid patient id %q: %w", s, err)
		}
		ids = append(ids, id)
		return nil
	}

	for _, s := range strings.Split(list, ",") {
		if err := add(s); err != nil {
			return nil, err
		}
	}
	if file != nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if err := add(scanner.Text()); err != nil {
				return nil, err
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read cohort file: %w", err)
		}
	}
	return ids, nil
}

func writeEvaluation(w io.Writer, eval *mchms.Evaluation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(eval)
}
