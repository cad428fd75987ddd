package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"genstudio/internal/metrics"
)

const backendLocal = "local"

var (
	// ErrInvalidSignature is returned by Verify for tampered or unsigned URLs.
	ErrInvalidSignature = errors.New("storage: invalid signature")
	// ErrExpired is returned by Verify once a signed URL is past its expiry.
	ErrExpired = errors.New("storage: signed url expired")
)

// FileStore persists assets onto the local filesystem and hands out
// HMAC-signed URLs served by the API's static route. It is intended for
// development and single-node deployments.
type FileStore struct {
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath. Signed URLs are
// built under baseURL.
func NewFileStore(basePath, baseURL, secret string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("storage: signing secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secret:   []byte(secret),
		now:      time.Now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Upload persists the provided bytes at the given relative key and returns
// the canonicalized storage key. Keys are cleaned to prevent directory
// traversal.
func (s *FileStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", ErrStorageDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		metrics.RecordStorage(backendLocal, "upload", "error")
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		metrics.RecordStorage(backendLocal, "upload", "error")
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	metrics.RecordStorage(backendLocal, "upload", "success")
	return cleanKey, nil
}

// Path resolves a key to its file on disk.
func (s *FileStore) Path(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// SignedURL returns {baseURL}/{key}?expires=..&sig=.. with the transform
// parameters folded into the signature.
func (s *FileStore) SignedURL(ctx context.Context, ref string, ttl time.Duration, transform *Transform) (string, error) {
	if s == nil {
		return "", ErrStorageDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(ref)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("storage: ttl must be positive")
	}
	q := transform.Values()
	q.Set("expires", strconv.FormatInt(s.now().Add(ttl).Unix(), 10))
	q.Set("sig", s.sign(key, q))
	metrics.RecordStorage(backendLocal, "sign", "success")
	return s.baseURL + "/" + escapeKey(key) + "?" + q.Encode(), nil
}

// SignedURLs signs each ref with the same ttl.
func (s *FileStore) SignedURLs(ctx context.Context, refs []string, ttl time.Duration) ([]string, error) {
	out := make([]string, len(refs))
	for i, ref := range refs {
		u, err := s.SignedURL(ctx, ref, ttl, nil)
		if err != nil {
			return nil, fmt.Errorf("storage: sign %q: %w", ref, err)
		}
		out[i] = u
	}
	return out, nil
}

// Verify checks the signature and expiry carried in query for key.
func (s *FileStore) Verify(key string, query url.Values) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	sig := query.Get("sig")
	if sig == "" {
		return ErrInvalidSignature
	}
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	want := s.sign(cleanKey, query)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

// sign computes the hex HMAC over the key and the sorted query string.
func (s *FileStore) sign(key string, q url.Values) string {
	unsigned := url.Values{}
	for k, v := range q {
		if k != "sig" {
			unsigned[k] = v
		}
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(unsigned.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
