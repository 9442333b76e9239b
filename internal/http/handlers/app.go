package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"flyergen/internal/domain"
	"flyergen/internal/pipeline"
)

// Pipeline runs one flyer campaign end to end.
type Pipeline interface {
	Run(ctx context.Context, c domain.Campaign) (*pipeline.Result, error)
}

type App struct {
	Flyers Pipeline
	Logger zerolog.Logger
}

func NewApp(flyers Pipeline, logger zerolog.Logger) *App {
	return &App{Flyers: flyers, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"success": false, "error": code, "message": message})
}
