package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memory-map-backend/internal/cache"
	"memory-map-backend/internal/config"
	"memory-map-backend/internal/geocode"
	"memory-map-backend/internal/handlers"
	"memory-map-backend/internal/media"
	"memory-map-backend/internal/middleware"
	"memory-map-backend/internal/repository"
	"memory-map-backend/internal/services"
	"memory-map-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the memory-map command line
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "memory-map",
		Short:         "Backend for a shared map of memories and places to visit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, db *pgxpool.Pool) error {
				if err := repository.Migrate(cmd.Context(), db); err != nil {
					return err
				}
				log.Info().Msg("Database schema is up to date")
				return nil
			})
		},
	})

	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete a user with all memories and wishlist places",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, db *pgxpool.Pool) error {
				userService := services.NewUserService(repository.NewUserRepository(db), cfg.JWT.Secret, cfg.JWT.TTL)
				if err := userService.DeleteUser(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to delete user %s: %w", args[0], err)
				}
				log.Info().Str("user_id", args[0]).Msg("User deleted")

				objects, err := storage.NewS3Store(cmd.Context(), cfg.AWS)
				if err != nil {
					return fmt.Errorf("failed to create object store: %w", err)
				}
				for _, prefix := range media.UserPrefixes(args[0]) {
					n, err := objects.DeletePrefix(cmd.Context(), prefix)
					if err != nil {
						return fmt.Errorf("failed to delete objects of user %s: %w", args[0], err)
					}
					log.Info().Str("prefix", prefix).Int("objects", n).Msg("Stored objects deleted")
				}
				return nil
			})
		},
	})
	rootCmd.AddCommand(usersCmd)

	return rootCmd
}

// withDatabase loads the config and hands a connected pool to fn
func withDatabase(ctx context.Context, fn func(cfg *config.Config, db *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cfg, db)
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")
	return db, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func Run() error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info().Msg("Database schema is up to date")
	}

	healthChecks := map[string]handlers.HealthPinger{
		"database": handlers.PingFunc(db.Ping),
	}

	// Geocode results are cached only when redis is configured
	var geoCache geocode.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		redisCache := cache.NewRedisCache(redisClient, "geocode:")
		geoCache = redisCache
		healthChecks["redis"] = redisCache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	}

	geocoder := geocode.NewClient(cfg.Geocoding, geoCache)
	if !geocoder.Enabled() {
		log.Warn().Msg("Geocoding API key not set, place enrichment disabled")
	}

	objects, err := storage.NewS3Store(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)
	wishlistRepo := repository.NewWishlistRepository(db)

	// Initialize services
	hub := services.NewEventsHub()
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL)
	memoryService := services.NewMemoryService(memoryRepo, objects, geocoder, hub)
	wishlistService := services.NewWishlistService(wishlistRepo, geocoder, hub)
	uploadService := services.NewUploadService(objects, cfg.Upload.MaxBytes)

	router := handlers.NewRouter(handlers.RouterDeps{
		UserService:     userService,
		MemoryService:   memoryService,
		WishlistService: wishlistService,
		UploadService:   uploadService,
		Hub:             hub,
		UploadLimiter:   middleware.NewUserRateLimiter(cfg.Upload.RatePerMinute),
		HealthChecks:    healthChecks,
		AllowedOrigin:   cfg.Server.AllowedOrigin,
		SecureCookies:   cfg.Server.SecureCookies,
	})

	// Create HTTP server. Uploads of up to 10 MiB need a longer read timeout.
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown
	srv.RegisterOnShutdown(hub.CloseAll)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
