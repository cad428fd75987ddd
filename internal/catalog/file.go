package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"genstudio/internal/domain"
)

type fileCatalog struct {
	Models []fileModel `yaml:"models"`
}

type fileModel struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description"`
	Provider       string        `yaml:"provider"`
	MediaType      string        `yaml:"media_type"`
	RequiredInputs []string      `yaml:"required_inputs"`
	OptionalInputs []string      `yaml:"optional_inputs"`
	PromptOptional bool          `yaml:"prompt_optional"`
	Kinds          []string      `yaml:"kinds"`
	Settings       []fileSetting `yaml:"settings"`
}

type fileSetting struct {
	Type      string          `yaml:"type"`
	Key       string          `yaml:"key"`
	Label     string          `yaml:"label"`
	Default   any             `yaml:"default"`
	Required  bool            `yaml:"required"`
	Multiline bool            `yaml:"multiline"`
	Min       *float64        `yaml:"min"`
	Max       *float64        `yaml:"max"`
	Options   []domain.Option `yaml:"options"`
}

// LoadFile reads additional models from a YAML catalog file.
func LoadFile(path string) ([]domain.GenerationModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog document.
func Parse(raw []byte) ([]domain.GenerationModel, error) {
	var doc fileCatalog
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	models := make([]domain.GenerationModel, 0, len(doc.Models))
	for _, fm := range doc.Models {
		m, err := fm.toModel()
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

func (fm fileModel) toModel() (domain.GenerationModel, error) {
	provider := strings.TrimSpace(fm.Provider)
	if provider == "" {
		provider = providerFal
	}
	m := domain.GenerationModel{
		ID:             strings.TrimSpace(fm.ID),
		Name:           fm.Name,
		Description:    fm.Description,
		Provider:       provider,
		MediaType:      domain.MediaType(strings.ToLower(strings.TrimSpace(fm.MediaType))),
		PromptOptional: fm.PromptOptional,
	}
	for _, in := range fm.RequiredInputs {
		m.RequiredInputs = append(m.RequiredInputs, domain.ReferenceInputKind(strings.TrimSpace(in)))
	}
	for _, in := range fm.OptionalInputs {
		m.OptionalInputs = append(m.OptionalInputs, domain.ReferenceInputKind(strings.TrimSpace(in)))
	}
	for _, k := range fm.Kinds {
		m.Kinds = append(m.Kinds, domain.GenerationKind(strings.TrimSpace(k)))
	}
	for _, fs := range fm.Settings {
		s, err := fs.toSetting()
		if err != nil {
			return domain.GenerationModel{}, fmt.Errorf("catalog: model %q: %w", m.ID, err)
		}
		m.Settings = append(m.Settings, s)
	}
	return m, nil
}

func (fs fileSetting) toSetting() (domain.Setting, error) {
	switch domain.SettingType(strings.ToLower(strings.TrimSpace(fs.Type))) {
	case domain.SettingSelect:
		return domain.SelectSetting{Key: fs.Key, Label: fs.Label, Default: fs.Default, Options: fs.Options, Required: fs.Required}, nil
	case domain.SettingToggle:
		def := false
		if fs.Default != nil {
			b, ok := domain.AsBool(fs.Default)
			if !ok {
				return nil, fmt.Errorf("setting %q: toggle default must be a boolean", fs.Key)
			}
			def = b
		}
		return domain.ToggleSetting{Key: fs.Key, Label: fs.Label, Default: def, Required: fs.Required}, nil
	case domain.SettingText:
		def := ""
		if fs.Default != nil {
			def = fmt.Sprint(fs.Default)
		}
		return domain.TextSetting{Key: fs.Key, Label: fs.Label, Default: def, Required: fs.Required, Multiline: fs.Multiline}, nil
	case domain.SettingNumber:
		s := domain.NumberSetting{Key: fs.Key, Label: fs.Label, Min: fs.Min, Max: fs.Max, Required: fs.Required}
		if fs.Default != nil {
			n, ok := domain.AsNumber(fs.Default)
			if !ok {
				return nil, fmt.Errorf("setting %q: number default must be numeric", fs.Key)
			}
			s.Default = &n
		}
		return s, nil
	default:
		return nil, fmt.Errorf("setting %q: unknown type %q", fs.Key, fs.Type)
	}
}
