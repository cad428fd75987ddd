package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"genstudio/internal/domain"
)

// Registry is an immutable catalog of generation models. It is safe for
// concurrent use without locking because nothing mutates it after New.
type Registry struct {
	models []domain.GenerationModel
	byID   map[string]int
}

// New validates models and builds a registry preserving their order.
func New(models []domain.GenerationModel) (*Registry, error) {
	r := &Registry{
		models: make([]domain.GenerationModel, 0, len(models)),
		byID:   make(map[string]int, len(models)),
	}
	for _, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: model id is required")
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model id %q", m.ID)
		}
		if err := validateModel(m); err != nil {
			return nil, err
		}
		m.Settings = labelSettings(m.Settings)
		r.byID[m.ID] = len(r.models)
		r.models = append(r.models, m)
	}
	return r, nil
}

// MustNew is New for static catalogs known to be valid.
func MustNew(models []domain.GenerationModel) *Registry {
	r, err := New(models)
	if err != nil {
		panic(err)
	}
	return r
}

// Get resolves a model by id.
func (r *Registry) Get(id string) (domain.GenerationModel, error) {
	idx, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.GenerationModel{}, &domain.Error{
			Code:    domain.CodeModelNotFound,
			Field:   "model_id",
			Message: fmt.Sprintf("model %q is not in the catalog", id),
		}
	}
	return r.models[idx], nil
}

// List returns every model in catalog order.
func (r *Registry) List() []domain.GenerationModel {
	out := make([]domain.GenerationModel, len(r.models))
	copy(out, r.models)
	return out
}

// Len returns the number of models.
func (r *Registry) Len() int { return len(r.models) }

// ListByGenerationKind returns the models belonging to kind. Ids listed in
// priority come first in the given order, the rest follow in catalog order.
// A limit <= 0 disables truncation.
func (r *Registry) ListByGenerationKind(kind domain.GenerationKind, priority []string, limit int) []domain.GenerationModel {
	matches := make([]bool, len(r.models))
	for i, m := range r.models {
		matches[i] = hasKind(InferGenerationKinds(m), kind)
	}

	out := make([]domain.GenerationModel, 0, len(r.models))
	taken := make(map[int]bool, len(priority))
	for _, id := range priority {
		idx, ok := r.byID[strings.TrimSpace(id)]
		if !ok || taken[idx] || !matches[idx] {
			continue
		}
		taken[idx] = true
		out = append(out, r.models[idx])
	}
	for i, m := range r.models {
		if taken[i] || !matches[i] {
			continue
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Merge returns a registry with base models followed by extra ones. Entries
// of extra replace base entries with the same id in place.
func Merge(base *Registry, extra []domain.GenerationModel) (*Registry, error) {
	models := base.List()
	for _, m := range extra {
		if idx, ok := base.byID[strings.TrimSpace(m.ID)]; ok {
			models[idx] = m
			continue
		}
		models = append(models, m)
	}
	return New(models)
}

func validateModel(m domain.GenerationModel) error {
	switch m.MediaType {
	case domain.MediaTypeImage, domain.MediaTypeVideo:
	default:
		return fmt.Errorf("catalog: model %q has unknown media type %q", m.ID, m.MediaType)
	}
	for _, in := range append(append([]domain.ReferenceInputKind{}, m.RequiredInputs...), m.OptionalInputs...) {
		if !in.Valid() {
			return fmt.Errorf("catalog: model %q has unknown input %q", m.ID, in)
		}
	}
	for _, k := range m.Kinds {
		if !k.Valid() {
			return fmt.Errorf("catalog: model %q declares unknown kind %q", m.ID, k)
		}
	}
	seen := make(map[string]bool, len(m.Settings))
	for _, s := range m.Settings {
		key := s.SettingKey()
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("catalog: model %q has a setting without key", m.ID)
		}
		if seen[key] {
			return fmt.Errorf("catalog: model %q has duplicate setting %q", m.ID, key)
		}
		seen[key] = true
		if sel, ok := s.(domain.SelectSetting); ok && sel.Default != nil && !sel.HasValue(sel.Default) {
			return fmt.Errorf("catalog: model %q setting %q default %v is not an option", m.ID, key, sel.Default)
		}
	}
	return nil
}

// humanize turns "num_inference_steps" into "Num Inference Steps". Casers
// keep state, so each call gets its own.
func humanize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func labelSettings(settings []domain.Setting) []domain.Setting {
	if len(settings) == 0 {
		return nil
	}
	out := make([]domain.Setting, len(settings))
	for i, s := range settings {
		if strings.TrimSpace(s.SettingLabel()) != "" {
			out[i] = s
			continue
		}
		label := humanize(s.SettingKey())
		switch v := s.(type) {
		case domain.SelectSetting:
			v.Label = label
			out[i] = v
		case domain.ToggleSetting:
			v.Label = label
			out[i] = v
		case domain.TextSetting:
			v.Label = label
			out[i] = v
		case domain.NumberSetting:
			v.Label = label
			out[i] = v
		default:
			out[i] = s
		}
	}
	return out
}

func hasKind(kinds []domain.GenerationKind, kind domain.GenerationKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
