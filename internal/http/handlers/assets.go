package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/assets"
	"genstudio/internal/domain"
	"genstudio/internal/storage"
)

type signRequest struct {
	Refs       []string          `json:"refs" validate:"required,min=1,max=100,dive,required,max=2048"`
	TTLSeconds int               `json:"ttl_seconds" validate:"omitempty,min=60,max=604800"`
	Transform  *transformRequest `json:"transform" validate:"omitempty"`
}

type transformRequest struct {
	Width   int    `json:"width" validate:"omitempty,min=1,max=8192"`
	Height  int    `json:"height" validate:"omitempty,min=1,max=8192"`
	Resize  string `json:"resize" validate:"omitempty,oneof=cover contain fill"`
	Quality int    `json:"quality" validate:"omitempty,min=1,max=100"`
	Format  string `json:"format" validate:"omitempty,oneof=webp png jpeg avif origin"`
}

// SignAssets serves POST /v1/assets/sign.
func (a *App) SignAssets(w http.ResponseWriter, r *http.Request) {
	var body signRequest
	if !a.decode(w, r, &body) {
		return
	}
	opts := assets.SignOptions{TTL: time.Duration(body.TTLSeconds) * time.Second}
	if t := body.Transform; t != nil {
		opts.Transform = &storage.Transform{Width: t.Width, Height: t.Height, Resize: t.Resize, Quality: t.Quality, Format: t.Format}
	}
	signed, err := a.signer.SignMany(r.Context(), body.Refs, opts)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"signed": signed})
}

// Static serves GET /static/* for the local storage backend after checking
// the URL signature.
func (a *App) Static(w http.ResponseWriter, r *http.Request) {
	if a.files == nil {
		http.NotFound(w, r)
		return
	}
	key, err := url.PathUnescape(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := a.files.Verify(key, r.URL.Query()); err != nil {
		status := http.StatusForbidden
		code := "invalid_signature"
		if errors.Is(err, storage.ErrExpired) {
			code = "expired"
		}
		a.error(w, r, status, errorBody{Code: code, Message: err.Error()})
		return
	}
	path, err := a.files.Path(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}

// WatchAsset serves GET /v1/assets/watch?ref=&ttl_seconds= as a server-sent
// event stream. A "signed" event is sent with the first URL and again each
// time it is re-signed ahead of expiry. Absolute URLs never expire, so their
// stream ends after the first event.
func (a *App) WatchAsset(w http.ResponseWriter, r *http.Request) {
	if a.refresher == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	ref := strings.TrimSpace(q.Get("ref"))
	if ref == "" {
		a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "ref is required", Field: "ref"})
		return
	}
	var opts assets.SignOptions
	if raw := strings.TrimSpace(q.Get("ttl_seconds")); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl < 60 || ttl > 604800 {
			a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "ttl_seconds must be between 60 and 604800", Field: "ttl_seconds"})
			return
		}
		opts.TTL = time.Duration(ttl) * time.Second
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, r, http.StatusInternalServerError, errorBody{Code: "internal", Message: "streaming unsupported"})
		return
	}

	updates := make(chan domain.SignedAccess, 1)
	stop := a.refresher.Watch(r.Context(), ref, opts, func(access domain.SignedAccess) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- access:
		default:
		}
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case access := <-updates:
			data, err := json.Marshal(access)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: signed\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			if !access.Expiring() {
				return
			}
		}
	}
}
