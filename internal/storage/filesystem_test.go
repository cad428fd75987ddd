package storage

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreUpload(t *testing.T) {
	store := newTestFileStore(t)
	key, err := store.Upload(context.Background(), "/generated/images/g1/../g1/0.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if key != "generated/images/g1/0.png" {
		t.Fatalf("key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(store.BasePath(), "generated", "images", "g1", "0.png"))
	if err != nil || string(data) != "png" {
		t.Fatalf("file = %q, %v", data, err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", "../etc/passwd", "a/../../b", ".", ".."} {
		if _, err := sanitizeKey(key); err == nil {
			t.Errorf("sanitizeKey(%q) accepted", key)
		}
	}
}

func TestFileStoreSignAndVerify(t *testing.T) {
	store := newTestFileStore(t)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	signed, err := store.SignedURL(context.Background(), "generated/images/g1/0.png", time.Hour, &Transform{Width: 512, Format: "webp"})
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !strings.HasPrefix(signed, "http://localhost:8080/static/generated/images/g1/0.png?") {
		t.Fatalf("signed = %q", signed)
	}
	u, _ := url.Parse(signed)
	q := u.Query()
	if q.Get("w") != "512" || q.Get("fm") != "webp" || q.Get("expires") != "1700003600" {
		t.Fatalf("query = %v", q)
	}
	key := strings.TrimPrefix(u.Path, "/static/")
	if err := store.Verify(key, q); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	tampered := url.Values{}
	for k, v := range q {
		tampered[k] = v
	}
	tampered.Set("w", "4096")
	if err := store.Verify(key, tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered err = %v", err)
	}
	if err := store.Verify("generated/images/g1/1.png", q); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("other key err = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if err := store.Verify(key, q); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired err = %v", err)
	}
}

func TestFileStoreSignedURLs(t *testing.T) {
	store := newTestFileStore(t)
	urls, err := store.SignedURLs(context.Background(), []string{"a.png", "b/c.mp4"}, time.Minute)
	if err != nil {
		t.Fatalf("SignedURLs: %v", err)
	}
	if len(urls) != 2 || !strings.Contains(urls[0], "/a.png?") || !strings.Contains(urls[1], "/b/c.mp4?") {
		t.Fatalf("urls = %v", urls)
	}
	if _, err := store.SignedURLs(context.Background(), []string{"ok.png", "../nope"}, time.Minute); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}

func TestTransformValues(t *testing.T) {
	var nilTransform *Transform
	if !nilTransform.IsZero() || nilTransform.String() != "" {
		t.Fatalf("nil transform should be empty")
	}
	tr := &Transform{Width: 100, Height: 50, Resize: "cover", Quality: 80, Format: "png"}
	if got := tr.String(); got != "fm=png&h=50&q=80&resize=cover&w=100" {
		t.Fatalf("String() = %q", got)
	}
}
