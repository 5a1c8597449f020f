package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tryon/internal/bootstrap"
	"tryon/internal/http/handlers"
	httpapi "tryon/internal/http/httpapi"
	"tryon/internal/infra"
	"tryon/internal/infra/geoip"
	"tryon/internal/middleware"
	"tryon/internal/tryon"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg, "tryon-api")

	if !cfg.HasCredential() {
		logger.Warn().Msg("GEMINI_API_KEY is not set; try-on requests will fail with missing_credential")
	}

	svc, err := bootstrap.NewService(cfg, &logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build try-on service")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer func() {
		_ = resolver.Close()
	}()
	var lookup middleware.CountryLookup
	if fn := resolver.Lookup(); fn != nil {
		lookup = fn
	}

	app := handlers.NewApp(handlers.AppOptions{
		Service:        svc,
		Sessions:       tryon.NewSessions(),
		HasCredential:  cfg.HasCredential(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         &logger,
	})

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().
		Str("addr", server.Addr()).
		Str("transport", cfg.GeminiTransport).
		Str("image_model", cfg.GeminiImageModel).
		Str("text_model", cfg.GeminiTextModel).
		Msg("API listening")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}
