package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medconnect/medconnect/internal/config"
	"github.com/medconnect/medconnect/internal/domain/admin"
	"github.com/medconnect/medconnect/internal/domain/appointment"
	"github.com/medconnect/medconnect/internal/domain/chat"
	"github.com/medconnect/medconnect/internal/domain/identity"
	"github.com/medconnect/medconnect/internal/domain/medrecord"
	"github.com/medconnect/medconnect/internal/domain/prescription"
	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/db"
	"github.com/medconnect/medconnect/internal/platform/mailer"
	"github.com/medconnect/medconnect/internal/platform/middleware"
	"github.com/medconnect/medconnect/internal/platform/otp"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medconnect-server",
		Short: "MedConnect appointment and records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a PHI encryption key for PHI_ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := phi.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(key))
			return nil
		},
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// OTP store. Redis when configured so codes survive restarts and are
	// shared across instances; in-memory otherwise.
	var otpStore otp.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		otpStore = otp.NewRedisStore(client)
		logger.Info().Msg("using redis OTP store")
	} else {
		otpStore = otp.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set, OTP codes are held in memory")
	}

	// PHI encryption. An explicit key wins; otherwise one is derived from the
	// JWT secret so development setups work out of the box.
	key, err := cfg.EncryptionKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PHI_ENCRYPTION_KEY")
	}
	var encryptor *phi.Encryptor
	if key != nil {
		encryptor, err = phi.NewEncryptor(key)
	} else {
		secret := cfg.JWTSecretKey
		if secret == "" {
			secret = "medconnect-dev"
			logger.Warn().Msg("no PHI_ENCRYPTION_KEY or JWT_SECRET_KEY set, using a development key")
		}
		encryptor, err = phi.NewDerivedEncryptor([]byte(secret))
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PHI encryption")
	}

	audit := phi.NewAuditLogger(logger, pool)

	jwtSecret := cfg.JWTSecretKey
	if jwtSecret == "" {
		jwtSecret = "medconnect-dev"
	}
	issuer := auth.NewIssuer([]byte(jwtSecret), cfg.TokenTTL())

	mail := mailer.New(mailer.NewLogSender(logger), mailer.NewTemplateEngine(), cfg.MailFrom)

	// Repositories and services.
	userRepo := identity.NewRepo(pool)
	apptRepo := appointment.NewRepo(pool)
	recordRepo := medrecord.NewRepo(pool)
	rxRepo := prescription.NewRepo(pool)
	chatRepo := chat.NewRepo(pool)
	adminRepo := admin.NewRepo(pool)

	identitySvc := identity.NewService(userRepo, apptRepo, otp.NewGate(otpStore), mail, issuer)
	apptSvc := appointment.NewService(apptRepo, userRepo, audit, mail, logger)
	recordSvc := medrecord.NewService(recordRepo, encryptor, audit, logger)
	rxSvc := prescription.NewService(rxRepo, encryptor, audit, logger)
	chatSvc := chat.NewService(chatRepo)
	adminSvc := admin.NewService(adminRepo, userRepo, audit)

	// HTTP server.
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api")
	authed := api.Group("", auth.Middleware(issuer))

	identity.NewHandler(identitySvc).RegisterRoutes(api, authed)
	appointment.NewHandler(apptSvc).RegisterRoutes(authed)
	medrecord.NewHandler(recordSvc).RegisterRoutes(authed)
	prescription.NewHandler(rxSvc).RegisterRoutes(authed)
	chat.NewHandler(chatSvc).RegisterRoutes(authed)
	admin.NewHandler(adminSvc).RegisterRoutes(authed)

	// Start and wait for a shutdown signal.
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			logger.Info().Str("addr", addr).Msg("starting server with TLS")
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logger.Info().Str("addr", addr).Msg("starting server")
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
