package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/storefront-api/internal/auth"
	"github.com/shopcore/storefront-api/internal/cache"
	"github.com/shopcore/storefront-api/internal/config"
	"github.com/shopcore/storefront-api/internal/db"
	handlerHttp "github.com/shopcore/storefront-api/internal/handler/http"
	"github.com/shopcore/storefront-api/internal/order"
	"github.com/shopcore/storefront-api/internal/product"
	"github.com/shopcore/storefront-api/internal/user"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Info().Msg("starting storefront-api...")

	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Postgres.MigrationsDir != "" {
		if err := db.RunMigrations(cfg.Postgres); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	pg, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	redisCache, err := cache.New(cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	productRepo := product.NewRepository(pg.Pool)
	productSvc := product.NewService(productRepo)
	orderRepo := order.NewRepository(pg.Pool)
	orderSvc := order.NewService(orderRepo)
	userRepo := user.NewRepository(pg.Pool)
	userSvc := user.NewService(userRepo)

	router := handlerHttp.NewRouter(handlerHttp.RouterDeps{
		Verifier:  auth.NewVerifier(cfg.Auth.JWTSecret),
		Throttler: auth.NewThrottler(redisCache, cfg.Throttle.Scopes),
		Pages:     redisCache,
		ListTTL:   cfg.Cache.ListTTL,
		Products:  handlerHttp.NewProductHandler(productSvc, cfg.App.ProductListDelay),
		Orders:    handlerHttp.NewOrderHandler(orderSvc),
		Users:     handlerHttp.NewUserHandler(userSvc),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("HTTP server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	pg.Close()
	if err := redisCache.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis connection")
	}

	log.Info().Msg("storefront-api stopped gracefully")
}
