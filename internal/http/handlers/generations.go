package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/middleware"
)

type generateRequest struct {
	ModelID         string                               `json:"model_id" validate:"required,max=200"`
	Kind            domain.GenerationKind                `json:"kind" validate:"omitempty,oneof=text-to-image text-to-video image-to-image image-to-video video-to-video inpaint lipsync"`
	Prompt          string                               `json:"prompt"`
	NegativePrompt  string                               `json:"negative_prompt" validate:"max=10000"`
	ReferenceInputs map[domain.ReferenceInputKind]string `json:"reference_inputs" validate:"omitempty,max=8,dive,max=4096"`
	Settings        map[string]any                       `json:"settings" validate:"omitempty,max=64"`
	TimeoutSeconds  int                                  `json:"timeout_seconds" validate:"omitempty,min=1,max=600"`
	OmitLogs        bool                                 `json:"omit_logs"`
}

type assetDTO struct {
	domain.Asset
	SignedURL string     `json:"signed_url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type generationDTO struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id,omitempty"`
	ModelID      string                `json:"model_id"`
	Kind         domain.GenerationKind `json:"kind"`
	Status       domain.JobStatus      `json:"status"`
	RequestID    string                `json:"request_id,omitempty"`
	Prompt       string                `json:"prompt,omitempty"`
	ErrorCode    string                `json:"error_code,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Output       *domain.Output        `json:"output,omitempty"`
	Assets       []assetDTO            `json:"assets"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func toGenerationDTO(res *generation.GenerationResult) generationDTO {
	gen := res.Generation
	dto := generationDTO{
		ID:           gen.ID,
		UserID:       gen.UserID,
		ModelID:      gen.ModelID,
		Kind:         gen.Kind,
		Status:       gen.Status,
		RequestID:    gen.RequestID,
		Prompt:       gen.Prompt,
		ErrorCode:    gen.ErrorCode,
		ErrorMessage: gen.ErrorMessage,
		Output:       res.Output,
		Assets:       make([]assetDTO, 0, len(res.Assets)),
		CreatedAt:    gen.CreatedAt,
		UpdatedAt:    gen.UpdatedAt,
	}
	if dto.Output != nil {
		out := *dto.Output
		out.Raw = nil
		dto.Output = &out
	}
	for i, asset := range res.Assets {
		ad := assetDTO{Asset: asset}
		if i < len(res.Signed) {
			ad.SignedURL = res.Signed[i].SignedURL
			if res.Signed[i].Expiring() {
				exp := res.Signed[i].ExpiresAt
				ad.ExpiresAt = &exp
			}
		}
		dto.Assets = append(dto.Assets, ad)
	}
	return dto
}

// CreateGeneration serves POST /v1/generations. The call blocks until the
// generation ends, times out or the client goes away.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if !a.decode(w, r, &body) {
		return
	}
	req := domain.GenerationRequest{
		ModelID:         body.ModelID,
		Kind:            body.Kind,
		Prompt:          body.Prompt,
		NegativePrompt:  body.NegativePrompt,
		ReferenceInputs: body.ReferenceInputs,
		Settings:        body.Settings,
	}
	opts := generation.RunOptions{OmitLogs: body.OmitLogs}
	if body.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(body.TimeoutSeconds) * time.Second
	}

	res, err := a.generations.Generate(r.Context(), middleware.UserIDFromContext(r.Context()), req, opts)
	if err != nil {
		genID := ""
		if res != nil && res.Generation != nil {
			genID = res.Generation.ID
		}
		a.fail(w, r, err, genID)
		return
	}
	a.json(w, http.StatusOK, toGenerationDTO(res))
}

// GetGeneration serves GET /v1/generations/{id}.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := a.generations.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, id)
		return
	}
	if !a.owns(r, res.Generation) {
		a.fail(w, r, domain.ErrNotFound, "")
		return
	}
	a.json(w, http.StatusOK, toGenerationDTO(res))
}

// CancelGeneration serves POST /v1/generations/{id}/cancel.
func (a *App) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := a.generations.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, id)
		return
	}
	if !a.owns(r, current.Generation) {
		a.fail(w, r, domain.ErrNotFound, "")
		return
	}
	gen, err := a.generations.Cancel(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, id)
		return
	}
	a.json(w, http.StatusOK, toGenerationDTO(&generation.GenerationResult{Generation: gen}))
}

// owns hides generations of other users. Records without an owner are
// visible to everyone.
func (a *App) owns(r *http.Request, gen *domain.Generation) bool {
	if gen == nil {
		return false
	}
	return gen.UserID == "" || gen.UserID == middleware.UserIDFromContext(r.Context())
}
