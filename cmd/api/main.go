package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"flyergen/internal/assemble"
	"flyergen/internal/asset"
	"flyergen/internal/gemini"
	"flyergen/internal/http/handlers"
	httpapi "flyergen/internal/http/httpapi"
	"flyergen/internal/infra"
	"flyergen/internal/pipeline"
	"flyergen/internal/publish"
	"flyergen/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	scratch, err := storage.NewScratch(cfg.ScratchRoot)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare scratch storage")
	}

	fetchClient := &http.Client{Timeout: cfg.ImageFetchTimeout}
	logos, err := asset.NewResolver(asset.Options{
		Dir:          filepath.Join(scratch.Root(), "logo"),
		HTTPClient:   fetchClient,
		AllowedHosts: cfg.ImageFetchAllowlist,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init logo resolver")
	}
	products, err := asset.NewResolver(asset.Options{
		Dir:          filepath.Join(scratch.Root(), "product_images"),
		HTTPClient:   fetchClient,
		AllowedHosts: cfg.ImageFetchAllowlist,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init product resolver")
	}

	renderer, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.GeminiModel,
		RequestsPerMinute: cfg.GenerateRPM,
		Logger:            &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init gemini client")
	}

	publisher, err := publish.NewCloudinary(cfg.CloudinaryURL, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init cloudinary publisher")
	}

	flyers := pipeline.NewService(pipeline.Options{
		Logos:     logos,
		Products:  products,
		Renderer:  renderer,
		Assembler: assemble.NewPDF(&logger),
		Publisher: publisher,
		Scratch:   scratch,
		Logger:    &logger,
	})

	app := handlers.NewApp(flyers, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		DefaultLocale:   cfg.DefaultLocale,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
