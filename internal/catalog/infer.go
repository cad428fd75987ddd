package catalog

import (
	"strings"

	"genstudio/internal/domain"
)

// InferGenerationKinds classifies a model into the generation taxonomy.
// Declared kinds win. Otherwise the result is a best-effort guess from the
// media type, the input slots and substrings of the id and description; it
// may contain several kinds. When nothing matches, image models fall back to
// text-to-image and video models to text-to-video.
func InferGenerationKinds(m domain.GenerationModel) []domain.GenerationKind {
	if len(m.Kinds) > 0 {
		out := make([]domain.GenerationKind, len(m.Kinds))
		copy(out, m.Kinds)
		return out
	}

	text := strings.ToLower(m.ID + " " + m.Description)
	needsImage := requiresAny(m.RequiredInputs, domain.InputReferenceImage, domain.InputFirstFrame, domain.InputLastFrame)
	needsVideo := requiresAny(m.RequiredInputs, domain.InputReferenceVideo)
	acceptsImage := needsImage || requiresAny(m.OptionalInputs, domain.InputReferenceImage, domain.InputFirstFrame, domain.InputLastFrame)

	var kinds []domain.GenerationKind
	add := func(k domain.GenerationKind) {
		for _, existing := range kinds {
			if existing == k {
				return
			}
		}
		kinds = append(kinds, k)
	}

	if strings.Contains(text, "lipsync") || strings.Contains(text, "lip-sync") || strings.Contains(text, "lip sync") {
		add(domain.KindLipsync)
	}
	if strings.Contains(text, "inpaint") || strings.Contains(text, "fill") {
		add(domain.KindInpaint)
	}

	switch m.MediaType {
	case domain.MediaTypeImage:
		if needsImage || strings.Contains(text, "edit") || strings.Contains(text, "kontext") || strings.Contains(text, "image-to-image") {
			if !hasKind(kinds, domain.KindInpaint) || strings.Contains(text, "edit") {
				add(domain.KindImageToImage)
			}
		}
		if !m.RequiresPrompt() && !needsImage {
			break
		}
		if !needsImage && !hasKind(kinds, domain.KindInpaint) {
			add(domain.KindTextToImage)
		}
	case domain.MediaTypeVideo:
		if needsVideo || strings.Contains(text, "video-to-video") || strings.Contains(text, "v2v") {
			if !hasKind(kinds, domain.KindLipsync) {
				add(domain.KindVideoToVideo)
			}
		}
		if needsImage || strings.Contains(text, "image-to-video") || strings.Contains(text, "i2v") {
			add(domain.KindImageToVideo)
		}
		if !needsImage && !needsVideo && !hasKind(kinds, domain.KindLipsync) {
			add(domain.KindTextToVideo)
			if acceptsImage {
				add(domain.KindImageToVideo)
			}
		}
	}

	if len(kinds) == 0 {
		if m.MediaType == domain.MediaTypeVideo {
			return []domain.GenerationKind{domain.KindTextToVideo}
		}
		return []domain.GenerationKind{domain.KindTextToImage}
	}
	return kinds
}

func requiresAny(inputs []domain.ReferenceInputKind, want ...domain.ReferenceInputKind) bool {
	for _, in := range inputs {
		for _, w := range want {
			if in == w {
				return true
			}
		}
	}
	return false
}
