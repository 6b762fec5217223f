package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/example/roomboard/internal/backgrounds"
	"github.com/example/roomboard/internal/config"
	"github.com/example/roomboard/internal/httpapi"
	"github.com/example/roomboard/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	meetings, err := store.Open(store.Options{
		DataDir:        cfg.DataDir,
		MaxBackups:     cfg.MaxBackups,
		CheckConflicts: cfg.ConflictCheck,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to open meeting store", "error", err)
		os.Exit(1)
	}

	images, err := backgrounds.Open(cfg.DataDir, cfg.MaxUploadBytes, time.Now)
	if err != nil {
		logger.Error("failed to open background store", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Meetings:    httpapi.NewMeetingHandler(meetings, logger),
		Backgrounds: httpapi.NewBackgroundHandler(images, logger),
		Middleware: []mux.MiddlewareFunc{
			httpapi.RequestLogger(logger),
			httpapi.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		},
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "If-Match-Version"},
		ExposedHeaders: []string{"X-List-Version"},
	}).Handler(router)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("roomboard API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
