package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"todoapp/internal/adapter/repo"
	"todoapp/internal/billing"
	"todoapp/internal/clients"
	"todoapp/internal/http/handlers"
	"todoapp/internal/http/httpapi"
	"todoapp/internal/infra"
	"todoapp/internal/infra/geoip"
	"todoapp/internal/middleware"
	"todoapp/internal/providers/gotrue"
	"todoapp/internal/providers/lemonsqueezy"
	"todoapp/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	authClient, err := gotrue.NewClient(gotrue.Options{
		BaseURL: cfg.SupabaseURL,
		APIKey:  cfg.SupabaseAnonKey,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure auth client")
	}
	billingClient, err := lemonsqueezy.NewClient(lemonsqueezy.Options{
		BaseURL: cfg.LemonSqueezyBaseURL,
		APIKey:  cfg.LemonSqueezyAPIKey,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure billing client")
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		geo = nil
	}
	defer geo.Close()
	var country middleware.CountryLookup
	if geo.Available() {
		country = geo.Lookup
	}

	subscriptions := repo.NewSubscriptionRepository(runner)
	registry := clients.NewRegistry(clients.Deps{
		Auth:          authClient,
		Sessions:      repo.NewSessionRepository(runner),
		Verifier:      session.NewTokenVerifier(cfg.SupabaseJWTSecret),
		Subscriptions: subscriptions,
		Todos:         repo.NewTodoRepository(runner),
		FetchTimeout:  cfg.SubscriptionFetchTimeout,
		IdleTTL:       cfg.ClientIdleTTL,
		MaxClients:    cfg.ClientMax,
		Logger:        &logger,
	})
	defer registry.Close()
	go registry.Run(ctx)

	app := handlers.NewApp(handlers.Options{
		Logger:        &logger,
		DB:            dbpool,
		Catalog:       billing.NewCatalog(billingClient, &logger),
		Billing:       billingClient,
		Mirror:        billing.NewMirror(subscriptions, &logger),
		Clients:       registry,
		WebhookSecret: cfg.LemonSqueezyWebhookKey,
	})
	if !app.WebhooksEnabled() {
		logger.Warn().Msg("LEMONSQUEEZY_WEBHOOK_SECRET not set, webhook endpoint disabled")
	}

	router := httpapi.NewRouter(app, httpapi.Deps{
		Config:  cfg,
		Logger:  logger,
		Clients: registry,
		Country: country,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
