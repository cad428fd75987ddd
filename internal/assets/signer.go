package assets

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
	"genstudio/internal/storage"
)

const (
	// DefaultTTL is the lifetime of a signed URL when none is requested.
	DefaultTTL = time.Hour
	// RefreshFraction of the TTL after which a URL is re-signed.
	RefreshFraction = 0.833
)

// SignOptions tunes a signing call.
type SignOptions struct {
	TTL       time.Duration
	Transform *storage.Transform
}

// SignerOptions configures a Signer.
type SignerOptions struct {
	Store      storage.Store
	Cache      Cache
	DefaultTTL time.Duration
	Logger     *infra.Logger
}

// Signer turns storage references into time-limited URLs and caches them
// until they are due for refresh.
type Signer struct {
	store      storage.Store
	cache      Cache
	defaultTTL time.Duration
	logger     *infra.Logger
	now        func() time.Time
}

// NewSigner builds a signer. A nil Cache selects a MemoryCache.
func NewSigner(opts SignerOptions) (*Signer, error) {
	if opts.Store == nil {
		return nil, errors.New("assets: storage is required")
	}
	s := &Signer{
		store:      opts.Store,
		cache:      opts.Cache,
		defaultTTL: opts.DefaultTTL,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(0)
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = DefaultTTL
	}
	if s.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		s.logger = &l
	}
	return s, nil
}

// Sign returns a signed URL for ref. Absolute http(s) URLs are returned as
// they are, with no expiry and without touching storage.
func (s *Signer) Sign(ctx context.Context, ref string, opts SignOptions) (domain.SignedAccess, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.SignedAccess{}, domain.NewError(domain.CodeStorageError, "asset reference is empty")
	}
	if storage.IsAbsoluteURL(ref) {
		return domain.SignedAccess{SourceRef: ref, SignedURL: ref}, nil
	}
	ttl := s.ttl(opts)
	key := cacheKey(ref, ttl, opts.Transform)
	if cached, ok := s.fresh(ctx, key); ok {
		return cached, nil
	}

	issued := s.now()
	signed, err := s.store.SignedURL(ctx, ref, ttl, opts.Transform)
	if err != nil {
		return domain.SignedAccess{}, &domain.Error{Code: domain.CodeStorageError, Message: "could not sign " + ref, Err: err}
	}
	access := s.access(ref, signed, issued, ttl)
	s.cache.Set(ctx, key, access)
	return access, nil
}

// SignMany signs refs preserving order. Absolute URLs keep their index
// untouched; the remaining refs are signed in one storage batch.
func (s *Signer) SignMany(ctx context.Context, refs []string, opts SignOptions) ([]domain.SignedAccess, error) {
	out := make([]domain.SignedAccess, len(refs))
	ttl := s.ttl(opts)

	var pending []int
	for i, raw := range refs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			return nil, domain.NewError(domain.CodeStorageError, "asset reference %d is empty", i)
		}
		if storage.IsAbsoluteURL(ref) {
			out[i] = domain.SignedAccess{SourceRef: ref, SignedURL: ref}
			continue
		}
		if cached, ok := s.fresh(ctx, cacheKey(ref, ttl, opts.Transform)); ok {
			out[i] = cached
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	// Batch signing carries no transform; fall back to one call per ref.
	if !opts.Transform.IsZero() {
		for _, i := range pending {
			access, err := s.Sign(ctx, refs[i], opts)
			if err != nil {
				return nil, err
			}
			out[i] = access
		}
		return out, nil
	}

	batch := make([]string, len(pending))
	for j, i := range pending {
		batch[j] = strings.TrimSpace(refs[i])
	}
	issued := s.now()
	signed, err := s.store.SignedURLs(ctx, batch, ttl)
	if err != nil {
		return nil, &domain.Error{Code: domain.CodeStorageError, Message: "could not sign assets", Err: err}
	}
	if len(signed) != len(batch) {
		return nil, domain.NewError(domain.CodeStorageError, "storage signed %d of %d assets", len(signed), len(batch))
	}
	for j, i := range pending {
		access := s.access(batch[j], signed[j], issued, ttl)
		s.cache.Set(ctx, cacheKey(batch[j], ttl, nil), access)
		out[i] = access
	}
	return out, nil
}

// Invalidate drops any cached URL for ref under opts.
func (s *Signer) Invalidate(ctx context.Context, ref string, opts SignOptions) {
	s.cache.Delete(ctx, cacheKey(strings.TrimSpace(ref), s.ttl(opts), opts.Transform))
}

func (s *Signer) ttl(opts SignOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return s.defaultTTL
}

func (s *Signer) fresh(ctx context.Context, key string) (domain.SignedAccess, bool) {
	cached, ok := s.cache.Get(ctx, key)
	if ok && s.now().Before(cached.RefreshAt) {
		metrics.RecordCache(true)
		return cached, true
	}
	metrics.RecordCache(false)
	return domain.SignedAccess{}, false
}

func (s *Signer) access(ref, signed string, issued time.Time, ttl time.Duration) domain.SignedAccess {
	return domain.SignedAccess{
		SourceRef: ref,
		SignedURL: signed,
		ExpiresAt: issued.Add(ttl),
		RefreshAt: issued.Add(time.Duration(float64(ttl) * RefreshFraction)),
	}
}

func cacheKey(ref string, ttl time.Duration, transform *storage.Transform) string {
	return ref + "|" + ttl.String() + "|" + transform.String()
}
