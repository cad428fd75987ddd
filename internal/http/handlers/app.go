package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"genstudio/internal/assets"
	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/storage"
)

// GenerationService is the part of generation.Service the handlers use.
type GenerationService interface {
	Generate(ctx context.Context, userID string, req domain.GenerationRequest, opts generation.RunOptions) (*generation.GenerationResult, error)
	Get(ctx context.Context, id string) (*generation.GenerationResult, error)
	Cancel(ctx context.Context, id string) (*domain.Generation, error)
	Upload(ctx context.Context, data []byte, fileName string) (string, error)
}

// Signer signs asset references for delivery.
type Signer interface {
	SignMany(ctx context.Context, refs []string, opts assets.SignOptions) ([]domain.SignedAccess, error)
}

// Watcher keeps a signed URL current for a long-lived consumer.
type Watcher interface {
	Watch(ctx context.Context, ref string, opts assets.SignOptions, onUpdate func(domain.SignedAccess)) (stop func())
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires an App.
type Options struct {
	Models      *catalog.Registry
	Generations GenerationService
	Signer      Signer
	Refresher   Watcher
	// Files serves /static when the local backend is active.
	Files          *storage.FileStore
	DB             Pinger
	MaxUploadBytes int64
	Logger         *infra.Logger
}

// App holds the dependencies shared by all handlers.
type App struct {
	models         *catalog.Registry
	generations    GenerationService
	signer         Signer
	refresher      Watcher
	files          *storage.FileStore
	db             Pinger
	maxUploadBytes int64
	logger         *infra.Logger
	validate       *validator.Validate
}

func NewApp(opts Options) *App {
	a := &App{
		models:         opts.Models,
		generations:    opts.Generations,
		signer:         opts.Signer,
		refresher:      opts.Refresher,
		files:          opts.Files,
		db:             opts.DB,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
		validate:       newValidator(),
	}
	if a.maxUploadBytes <= 0 {
		a.maxUploadBytes = 50 << 20
	}
	if a.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		a.logger = &l
	}
	return a
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Field        string `json:"field,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	LastStatus   string `json:"last_status,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, body errorBody) {
	if body.RequestID == "" {
		body.RequestID = middleware.RequestIDFromContext(r.Context())
	}
	a.json(w, code, map[string]errorBody{"error": body})
}

// fail renders err with an HTTP status derived from its category.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, generationID string) {
	status := statusFor(err)
	body := errorBody{Code: string(domain.CodeOf(err)), Message: "internal error", GenerationID: generationID}
	if derr, ok := domain.AsError(err); ok {
		body.Message = derr.Message
		if body.Message == "" {
			body.Message = string(derr.Code)
		}
		body.Field = derr.Field
		body.LastStatus = string(derr.LastStatus)
		body.Retryable = derr.Code.Retryable()
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Str("generation_id", generationID).Msg("request failed")
	}
	a.error(w, r, status, body)
}

func statusFor(err error) int {
	code := domain.CodeOf(err)
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeModelNotFound:
		return http.StatusNotFound
	case domain.CodeMissingCredentials:
		return http.StatusServiceUnavailable
	}
	switch code.Category() {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryProviderTransport, domain.CategoryProviderLogic, domain.CategoryResultInconsistency:
		return http.StatusBadGateway
	case domain.CategoryTimeout:
		return http.StatusGatewayTimeout
	case domain.CategoryCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "invalid JSON payload"})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, validationBody(err))
		return false
	}
	return true
}

// Health reports liveness and, when configured, database reachability.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.Ping(ctx); err != nil {
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
