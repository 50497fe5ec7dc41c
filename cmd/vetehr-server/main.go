package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vetehr/vetehr/internal/config"
	"github.com/vetehr/vetehr/internal/domain/directory"
	"github.com/vetehr/vetehr/internal/domain/episode"
	"github.com/vetehr/vetehr/internal/domain/exam"
	"github.com/vetehr/vetehr/internal/domain/hospitalization"
	"github.com/vetehr/vetehr/internal/domain/surgery"
	"github.com/vetehr/vetehr/internal/domain/timeline"
	"github.com/vetehr/vetehr/internal/domain/vaccination"
	"github.com/vetehr/vetehr/internal/platform/auth"
	"github.com/vetehr/vetehr/internal/platform/bind"
	"github.com/vetehr/vetehr/internal/platform/cache"
	"github.com/vetehr/vetehr/internal/platform/db"
	"github.com/vetehr/vetehr/internal/platform/events"
	"github.com/vetehr/vetehr/internal/platform/middleware"
	"github.com/vetehr/vetehr/migrations"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vetehr-server",
		Short:        "Veterinary clinic records API server",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(examCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, _, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <patient-id>",
		Short: "Print a patient's merged medical history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid patient id %q: %w", args[0], err)
			}
			ctx := cmd.Context()
			pool, cfg, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := newServices(pool, cfg, newLogger(cfg.Env), nil, events.Nop{})
			report, err := svc.history.BuildHistory(ctx, patientID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func examCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Physical exam document tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an exam document; use - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return validateExam(cmd.OutOrStdout(), r)
		},
	})
	return cmd
}

// validateExam prints the normalized document and its violations. It fails
// when the document is malformed or has violations.
func validateExam(w io.Writer, r io.Reader) error {
	raw, err := exam.ReadDocument(r)
	if err != nil {
		return err
	}
	doc, err := exam.ValidateDocument(raw)
	var verr *exam.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	out := struct {
		Exam       *exam.Exam       `json:"exam"`
		Violations []exam.Violation `json:"violations"`
	}{Exam: doc, Violations: []exam.Violation{}}
	if verr != nil {
		out.Violations = verr.Violations
	}
	if err := writeJSON(w, out); err != nil {
		return err
	}
	if verr != nil {
		return fmt.Errorf("%d violation(s) found", len(verr.Violations))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openDatabase(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return pool, cfg, nil
}

// services holds the wired domain services.
type services struct {
	episodes         *episode.Service
	hospitalizations *hospitalization.Service
	surgeries        *surgery.Service
	vaccinations     *vaccination.Service
	directory        *directory.Service
	history          *timeline.Aggregator
	audit            middleware.AuditRecorder
	limiter          middleware.Limiter
}

// auditPublisher forwards record access entries to the event exchange.
func auditPublisher(pub events.Publisher) middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pub.Publish(ctx, "audit.record_access", events.NewEnvelope("record_access", entry))
	})
}

// newServices wires every domain service. dirCache may be nil, in which case
// lookups go straight to Postgres and rate limits stay in process.
func newServices(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, dirCache *cache.Cache, pub events.Publisher) *services {
	s := &services{}

	s.directory = directory.NewService(directory.NewRepoPG(pool))
	s.directory.SetLogger(logger.With().Str("component", "directory").Logger())
	if dirCache != nil {
		s.directory.SetCache(dirCache, cfg.PatientCacheTTL)
		s.limiter = middleware.NewWindowLimiter(dirCache, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.hospitalizations = hospitalization.NewService(hospitalization.NewRepoPG(pool))
	s.hospitalizations.SetLogger(logger.With().Str("component", "hospitalization").Logger())

	s.surgeries = surgery.NewService(surgery.NewRepoPG(pool))
	s.surgeries.SetLogger(logger.With().Str("component", "surgery").Logger())

	s.vaccinations = vaccination.NewService(vaccination.NewRepoPG(pool))

	s.episodes = episode.NewService(episode.NewRepo(pool))
	s.episodes.SetLogger(logger.With().Str("component", "episode").Logger())
	s.episodes.SetHospitalizations(s.hospitalizations)
	s.episodes.SetPatientChecker(s.directory)
	s.episodes.SetPublisher(pub)

	s.history = timeline.NewAggregator(s.episodes, s.hospitalizations, s.surgeries, s.vaccinations)
	s.history.SetStaffDirectory(s.directory)
	s.history.SetPatientDirectory(s.directory)
	s.history.SetSourceTimeout(cfg.HistorySourceTimeout)
	s.history.SetMonitoringLimit(cfg.HistoryMonitoringLimit)
	s.history.SetLogger(logger.With().Str("component", "timeline").Logger())

	if pub != nil {
		s.audit = auditPublisher(pub)
	}
	return s
}

// authMiddleware selects the authentication scheme for the resolved mode.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	switch cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		return auth.DevAuthMiddleware()
	case config.AuthModeHMAC:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	default:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		})
	}
}

// newEcho builds the server with global middleware and every API route.
func newEcho(cfg *config.Config, logger zerolog.Logger, svc *services) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = bind.NewValidator()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(authMiddleware(cfg))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	rateLimitCfg.Limiter = svc.limiter
	rateLimitCfg.Logger = logger.With().Str("component", "ratelimit").Logger()
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.Audit(logger.With().Str("component", "audit").Logger(), svc.audit))

	episode.NewHandler(svc.episodes).RegisterRoutes(apiV1)
	hospitalization.NewHandler(svc.hospitalizations).RegisterRoutes(apiV1)
	surgery.NewHandler(svc.surgeries).RegisterRoutes(apiV1)
	vaccination.NewHandler(svc.vaccinations).RegisterRoutes(apiV1)
	directory.NewHandler(svc.directory).RegisterRoutes(apiV1)
	timeline.NewHandler(svc.history).RegisterRoutes(apiV1)
	exam.NewHandler().RegisterRoutes(apiV1)

	e.GET("/health/live", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	return e, apiV1
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:               cfg.DatabaseURL,
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		HealthCheckPeriod: 30 * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var pingers []db.Pinger

	// Redis directory cache
	var dirCache *cache.Cache
	if cfg.RedisURL != "" {
		client, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, directory cache disabled")
		} else {
			defer client.Close()
			dirCache = cache.New(client, "vetehr")
			pingers = append(pingers, dirCache)
			logger.Info().Msg("connected to redis")
		}
	}

	// Event publisher
	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer amqpPub.Close()
		pub = amqpPub
		pingers = append(pingers, amqpPub)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing visit events")
	}

	svc := newServices(pool, cfg, logger, dirCache, pub)
	e, _ := newEcho(cfg, logger, svc)
	e.GET("/health", db.HealthHandler(pool, pingers...))

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
