package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"genstudio/internal/domain"
)

const sampleCatalog = `
models:
  - id: fal-ai/recraft/v3/text-to-image
    name: Recraft V3
    media_type: image
    settings:
      - type: select
        key: style
        default: realistic_image
        options:
          - {label: Realistic, value: realistic_image}
          - {label: Vector, value: vector_illustration}
      - type: number
        key: num_images
        default: 1
        min: 1
        max: 4
      - type: toggle
        key: enable_safety_checker
        default: true
      - type: text
        key: colors
        multiline: true
`

func TestParseCatalog(t *testing.T) {
	models, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("models = %d, want 1", len(models))
	}
	m := models[0]
	if m.Provider != "fal" {
		t.Fatalf("provider = %q, want fal", m.Provider)
	}
	if len(m.Settings) != 4 {
		t.Fatalf("settings = %d, want 4", len(m.Settings))
	}
	if _, ok := m.Settings[0].(domain.SelectSetting); !ok {
		t.Fatalf("setting 0 is %T, want SelectSetting", m.Settings[0])
	}
	num, ok := m.Settings[1].(domain.NumberSetting)
	if !ok || num.Default == nil || *num.Default != 1 {
		t.Fatalf("number setting = %#v", m.Settings[1])
	}
	toggle, ok := m.Settings[2].(domain.ToggleSetting)
	if !ok || !toggle.Default {
		t.Fatalf("toggle setting = %#v", m.Settings[2])
	}
	text, ok := m.Settings[3].(domain.TextSetting)
	if !ok || !text.Multiline {
		t.Fatalf("text setting = %#v", m.Settings[3])
	}
	if _, err := New(models); err != nil {
		t.Fatalf("parsed catalog invalid: %v", err)
	}
}

func TestParseRejectsUnknownSettingType(t *testing.T) {
	_, err := Parse([]byte("models:\n  - id: x\n    media_type: image\n    settings:\n      - {type: slider, key: s}\n"))
	if err == nil {
		t.Fatalf("expected error for unknown setting type")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	merged, err := Merge(Default(), models)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := merged.Get("fal-ai/recraft/v3/text-to-image"); err != nil {
		t.Fatalf("merged model missing: %v", err)
	}
}
