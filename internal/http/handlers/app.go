package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"tryon/internal/imagegen"
	"tryon/internal/infra"
	"tryon/internal/tryon"
)

const defaultMaxUploadBytes = 20 << 20

// TryOnService is the pipeline the handlers drive.
type TryOnService interface {
	PerformTryOn(ctx context.Context, user imagegen.Source, product tryon.ProductSource, label string) (*imagegen.TryOnResult, error)
	EstimateSize(ctx context.Context, user imagegen.Source, label string) imagegen.SizeCode
}

// AppOptions wires an App.
type AppOptions struct {
	Service        TryOnService
	Sessions       *tryon.Sessions
	HasCredential  bool
	MaxUploadBytes int64
	Logger         *infra.Logger
}

type App struct {
	service        TryOnService
	sessions       *tryon.Sessions
	hasCredential  bool
	maxUploadBytes int64
	logger         *infra.Logger
	metrics        *attemptMetrics
}

func NewApp(opts AppOptions) *App {
	sessions := opts.Sessions
	if sessions == nil {
		sessions = tryon.NewSessions()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &App{
		service:        opts.Service,
		sessions:       sessions,
		hasCredential:  opts.HasCredential,
		maxUploadBytes: maxUpload,
		logger:         logger,
		metrics:        newAttemptMetrics(),
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// requestLogger prefers the request-scoped logger installed by the access log
// middleware.
func (a *App) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.logger
}
