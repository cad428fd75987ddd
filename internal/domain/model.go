package domain

// MediaType is the kind of media a generation model produces.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ReferenceInputKind names an input slot a model can consume.
type ReferenceInputKind string

const (
	InputReferenceImage ReferenceInputKind = "reference-image"
	InputFirstFrame     ReferenceInputKind = "first-frame"
	InputLastFrame      ReferenceInputKind = "last-frame"
	InputReferenceVideo ReferenceInputKind = "reference-video"
)

// Valid reports whether k is one of the known input slots.
func (k ReferenceInputKind) Valid() bool {
	switch k {
	case InputReferenceImage, InputFirstFrame, InputLastFrame, InputReferenceVideo:
		return true
	default:
		return false
	}
}

// IsImage reports whether the slot carries a still image.
func (k ReferenceInputKind) IsImage() bool {
	return k == InputReferenceImage || k == InputFirstFrame || k == InputLastFrame
}

// GenerationKind is the user-facing generation taxonomy.
type GenerationKind string

const (
	KindTextToImage  GenerationKind = "text-to-image"
	KindTextToVideo  GenerationKind = "text-to-video"
	KindImageToImage GenerationKind = "image-to-image"
	KindImageToVideo GenerationKind = "image-to-video"
	KindVideoToVideo GenerationKind = "video-to-video"
	KindInpaint      GenerationKind = "inpaint"
	KindLipsync      GenerationKind = "lipsync"
)

// AllGenerationKinds lists the taxonomy in display order.
var AllGenerationKinds = []GenerationKind{
	KindTextToImage,
	KindTextToVideo,
	KindImageToImage,
	KindImageToVideo,
	KindVideoToVideo,
	KindInpaint,
	KindLipsync,
}

// Valid reports whether k belongs to the taxonomy.
func (k GenerationKind) Valid() bool {
	for _, known := range AllGenerationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsTextFamily reports whether the kind starts from text only.
func (k GenerationKind) IsTextFamily() bool {
	return k == KindTextToImage || k == KindTextToVideo
}

// GenerationModel describes what a provider model accepts. Values are
// immutable once loaded into a registry.
type GenerationModel struct {
	ID             string
	Name           string
	Description    string
	Provider       string
	MediaType      MediaType
	RequiredInputs []ReferenceInputKind
	OptionalInputs []ReferenceInputKind
	// PromptOptional flips the default prompt requirement off.
	PromptOptional bool
	Settings       []Setting
	// Kinds, when set, replaces heuristic kind inference.
	Kinds []GenerationKind
}

// RequiresPrompt reports whether a non-blank prompt must be supplied.
func (m GenerationModel) RequiresPrompt() bool {
	return !m.PromptOptional
}

// AcceptsInput reports whether k is a required or optional slot of the model.
func (m GenerationModel) AcceptsInput(k ReferenceInputKind) bool {
	for _, in := range m.RequiredInputs {
		if in == k {
			return true
		}
	}
	for _, in := range m.OptionalInputs {
		if in == k {
			return true
		}
	}
	return false
}

// Setting looks up a schema entry by key.
func (m GenerationModel) Setting(key string) (Setting, bool) {
	for _, s := range m.Settings {
		if s.SettingKey() == key {
			return s, true
		}
	}
	return nil, false
}
