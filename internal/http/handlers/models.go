package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
)

type settingDTO struct {
	Type      domain.SettingType `json:"type"`
	Key       string             `json:"key"`
	Label     string             `json:"label"`
	Default   any                `json:"default,omitempty"`
	Required  bool               `json:"required,omitempty"`
	Options   []domain.Option    `json:"options,omitempty"`
	Min       *float64           `json:"min,omitempty"`
	Max       *float64           `json:"max,omitempty"`
	Multiline bool               `json:"multiline,omitempty"`
}

type modelDTO struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Description    string                      `json:"description,omitempty"`
	Provider       string                      `json:"provider"`
	MediaType      domain.MediaType            `json:"media_type"`
	Kinds          []domain.GenerationKind     `json:"kinds"`
	RequiredInputs []domain.ReferenceInputKind `json:"required_inputs"`
	OptionalInputs []domain.ReferenceInputKind `json:"optional_inputs"`
	RequiresPrompt bool                        `json:"requires_prompt"`
	Settings       []settingDTO                `json:"settings"`
}

func toModelDTO(m domain.GenerationModel) modelDTO {
	dto := modelDTO{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Provider:       m.Provider,
		MediaType:      m.MediaType,
		Kinds:          catalog.InferGenerationKinds(m),
		RequiredInputs: nonNil(m.RequiredInputs),
		OptionalInputs: nonNil(m.OptionalInputs),
		RequiresPrompt: m.RequiresPrompt(),
		Settings:       make([]settingDTO, 0, len(m.Settings)),
	}
	for _, s := range m.Settings {
		sd := settingDTO{
			Type:     s.SettingType(),
			Key:      s.SettingKey(),
			Label:    s.SettingLabel(),
			Default:  s.DefaultValue(),
			Required: s.IsRequired(),
		}
		switch v := s.(type) {
		case domain.SelectSetting:
			sd.Options = v.Options
		case domain.NumberSetting:
			sd.Min, sd.Max = v.Min, v.Max
		case domain.TextSetting:
			sd.Multiline = v.Multiline
		}
		dto.Settings = append(dto.Settings, sd)
	}
	return dto
}

func nonNil(in []domain.ReferenceInputKind) []domain.ReferenceInputKind {
	if in == nil {
		return []domain.ReferenceInputKind{}
	}
	return in
}

// ListModels serves GET /v1/models. With ?kind= the list is filtered by
// generation kind, ?priority=a,b pins ids first and ?limit= truncates.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "limit must be a non-negative integer", Field: "limit"})
			return
		}
		limit = n
	}

	var models []domain.GenerationModel
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		kind := domain.GenerationKind(raw)
		if !kind.Valid() {
			a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "unknown generation kind", Field: "kind"})
			return
		}
		models = a.models.ListByGenerationKind(kind, splitCSV(q.Get("priority")), limit)
	} else {
		models = a.models.List()
		if limit > 0 && len(models) > limit {
			models = models[:limit]
		}
	}

	out := make([]modelDTO, 0, len(models))
	for _, m := range models {
		out = append(out, toModelDTO(m))
	}
	a.json(w, http.StatusOK, map[string]any{"models": out})
}

// GetModel serves GET /v1/models/*. Model ids contain slashes, so the id is
// the whole wildcard.
func (a *App) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := a.models.Get(chi.URLParam(r, "*"))
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, toModelDTO(m))
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
