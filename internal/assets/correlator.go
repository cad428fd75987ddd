package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/storage"
)

const defaultMaxDownloadBytes = 512 << 20

// CorrelatorOptions configures a Correlator.
type CorrelatorOptions struct {
	Assets domain.AssetRepository
	Store  storage.Store
	// Mirror copies provider outputs into Store instead of referencing the
	// provider URL.
	Mirror bool
	// AllowedHosts limits which hosts mirroring downloads from. Subdomains
	// of a listed host match. Empty allows every host.
	AllowedHosts     []string
	HTTPClient       *http.Client
	MaxDownloadBytes int64
	Logger           *infra.Logger
}

// Correlator links the files of a finished generation to asset records.
type Correlator struct {
	assets     domain.AssetRepository
	store      storage.Store
	mirror     bool
	allowed    []string
	httpClient *http.Client
	maxBytes   int64
	logger     *infra.Logger
	now        func() time.Time
}

// NewCorrelator validates opts and applies defaults.
func NewCorrelator(opts CorrelatorOptions) (*Correlator, error) {
	if opts.Assets == nil {
		return nil, errors.New("assets: asset repository is required")
	}
	if opts.Mirror && opts.Store == nil {
		return nil, errors.New("assets: mirroring needs a storage backend")
	}
	c := &Correlator{
		assets:     opts.Assets,
		store:      opts.Store,
		mirror:     opts.Mirror,
		allowed:    normalizeHosts(opts.AllowedHosts),
		httpClient: opts.HTTPClient,
		maxBytes:   opts.MaxDownloadBytes,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.maxBytes <= 0 {
		c.maxBytes = defaultMaxDownloadBytes
	}
	if c.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		c.logger = &l
	}
	return c, nil
}

// Persist creates one asset per output file, in output order.
func (c *Correlator) Persist(ctx context.Context, gen *domain.Generation, out *domain.Output) ([]domain.Asset, error) {
	if gen == nil || out == nil {
		return nil, errors.New("assets: generation and output are required")
	}
	files := out.Files()
	assets := make([]domain.Asset, 0, len(files))
	for i, f := range files {
		kind := domain.AssetKindImage
		if i >= len(out.Images) {
			kind = domain.AssetKindVideo
		}
		asset := domain.Asset{
			ID:           uuid.NewString(),
			GenerationID: gen.ID,
			UserID:       gen.UserID,
			Kind:         kind,
			SourceRef:    f.URL,
			ContentType:  f.ContentType,
			Bytes:        f.FileSize,
			Width:        f.Width,
			Height:       f.Height,
			CreatedAt:    c.now().UTC(),
		}
		if asset.ContentType == "" {
			asset.ContentType = mime.TypeByExtension(path.Ext(stripQuery(f.URL)))
		}
		if c.mirror && !c.hostAllowed(f.URL) {
			c.logger.Warn().Str("generation_id", gen.ID).Str("url", f.URL).Msg("output host not in mirror allowlist, keeping provider url")
		} else if c.mirror {
			if err := c.mirrorFile(ctx, gen.ID, i, &asset); err != nil {
				return nil, &domain.Error{
					Code:    domain.CodeStorageError,
					Message: fmt.Sprintf("mirror output %d of generation %s", i, gen.ID),
					Err:     err,
				}
			}
		}
		if err := c.assets.Create(ctx, &asset); err != nil {
			return nil, &domain.Error{Code: domain.CodeStorageError, Message: "record asset", Err: err}
		}
		assets = append(assets, asset)
	}
	c.logger.Debug().Str("generation_id", gen.ID).Int("assets", len(assets)).Bool("mirrored", c.mirror).Msg("outputs correlated")
	return assets, nil
}

func (c *Correlator) mirrorFile(ctx context.Context, generationID string, index int, asset *domain.Asset) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.SourceRef, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return fmt.Errorf("download: output exceeds %d bytes", c.maxBytes)
	}

	contentType := mimetype.Detect(data).String()
	if contentType == "application/octet-stream" {
		if header := resp.Header.Get("Content-Type"); header != "" {
			contentType = header
		} else if asset.ContentType != "" {
			contentType = asset.ContentType
		}
	}
	contentType = strings.TrimSpace(strings.Split(contentType, ";")[0])

	key := defaultStorageKey(generationID, contentType, index)
	ref, err := c.store.Upload(ctx, key, data, contentType)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	asset.SourceRef = ref
	asset.ContentType = contentType
	asset.Bytes = int64(len(data))
	if strings.HasPrefix(contentType, "video/") {
		asset.Kind = domain.AssetKindVideo
	} else if strings.HasPrefix(contentType, "image/") {
		asset.Kind = domain.AssetKindImage
	}
	return nil
}

// defaultStorageKey lays out mirrored files as
// generated/{images|videos}/{generationID}/{prefix}-{nn}{ext}.
func defaultStorageKey(generationID, mimeType string, index int) string {
	category := "images"
	prefix := "image"
	if strings.HasPrefix(mimeType, "video/") {
		category = "videos"
		prefix = "video"
	}
	if index < 0 {
		index = 0
	}
	ext := extensionForMIME(mimeType)
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("generated/%s/%s/%s-%02d%s", category, generationID, prefix, index+1, ext)
}

func extensionForMIME(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		if mt := mimetype.Lookup(mimeType); mt != nil {
			return mt.Extension()
		}
		return ""
	}
}

func (c *Correlator) hostAllowed(rawURL string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range c.allowed {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			out = append(out, h)
		}
	}
	return out
}

func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
