package storage

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrStorageDisabled is returned by backends that were built without the
// settings they need.
var ErrStorageDisabled = errors.New("storage: backend is not configured")

// Store is the durable media storage used for mirrored outputs and signed
// delivery URLs.
type Store interface {
	// Upload writes data under key and returns the stored reference.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// SignedURL returns a time-limited URL for ref.
	SignedURL(ctx context.Context, ref string, ttl time.Duration, transform *Transform) (string, error)
	// SignedURLs signs refs in one call, preserving order.
	SignedURLs(ctx context.Context, refs []string, ttl time.Duration) ([]string, error)
}

// Transform is an optional image transformation applied at delivery time.
type Transform struct {
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Resize  string `json:"resize,omitempty"`
	Quality int    `json:"quality,omitempty"`
	Format  string `json:"format,omitempty"`
}

// IsZero reports whether t requests no transformation.
func (t *Transform) IsZero() bool {
	return t == nil || (t.Width <= 0 && t.Height <= 0 && t.Resize == "" && t.Quality <= 0 && t.Format == "")
}

// Values encodes t as query parameters.
func (t *Transform) Values() url.Values {
	v := url.Values{}
	if t.IsZero() {
		return v
	}
	if t.Width > 0 {
		v.Set("w", strconv.Itoa(t.Width))
	}
	if t.Height > 0 {
		v.Set("h", strconv.Itoa(t.Height))
	}
	if r := strings.TrimSpace(t.Resize); r != "" {
		v.Set("resize", r)
	}
	if t.Quality > 0 {
		v.Set("q", strconv.Itoa(t.Quality))
	}
	if f := strings.TrimSpace(t.Format); f != "" {
		v.Set("fm", f)
	}
	return v
}

// String is a stable encoding usable as a cache key component.
func (t *Transform) String() string {
	return t.Values().Encode()
}

// IsAbsoluteURL reports whether ref is already a fetchable http(s) URL.
func IsAbsoluteURL(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
