package domain

import "time"

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Asset is a stored output of a finished generation. SourceRef is either a
// storage key or an absolute URL.
type Asset struct {
	ID           string    `json:"id"`
	GenerationID string    `json:"generation_id"`
	UserID       string    `json:"user_id,omitempty"`
	Kind         AssetKind `json:"kind"`
	SourceRef    string    `json:"source_ref"`
	ContentType  string    `json:"content_type,omitempty"`
	Bytes        int64     `json:"bytes,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignedAccess is a time-boxed URL for a SourceRef. Absolute URLs pass
// through with a zero ExpiresAt.
type SignedAccess struct {
	SourceRef string    `json:"source_ref"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	RefreshAt time.Time `json:"refresh_at,omitempty"`
}

// Expiring reports whether the entry is bound to an expiry.
func (s SignedAccess) Expiring() bool {
	return !s.ExpiresAt.IsZero()
}
