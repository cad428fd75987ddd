package generation

import (
	"math"
	"sort"
	"strings"

	"genstudio/internal/domain"
)

// Payload is the provider request body.
type Payload map[string]any

var settingAliases = map[string]string{
	"imageSize":         "image_size",
	"numInferenceSteps": "num_inference_steps",
	"guidanceScale":     "guidance_scale",
	"numImages":         "num_images",
	"negativePrompt":    "negative_prompt",
	"enableSafety":      "enable_safety_checker",
}

var numericKeys = map[string]bool{
	"num_images":          true,
	"num_inference_steps": true,
	"guidance_scale":      true,
	"duration":            true,
	"seed":                true,
}

var booleanKeys = map[string]bool{
	"enable_safety_checker": true,
	"generate_audio":        true,
	"enhance_prompt":        true,
}

// BuildPayload translates a validated request into the provider body. The
// output depends only on its inputs.
func BuildPayload(model domain.GenerationModel, req domain.GenerationRequest) Payload {
	p := Payload{"prompt": req.Prompt}
	if np := strings.TrimSpace(req.NegativePrompt); np != "" {
		p["negative_prompt"] = np
	}

	for _, kind := range sortedInputKinds(req.ReferenceInputs) {
		url := strings.TrimSpace(req.ReferenceInputs[kind])
		if url == "" {
			continue
		}
		p[inputField(kind, req.Kind)] = url
	}

	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if canonical, ok := settingAliases[k]; ok {
			key = canonical
			// The canonical spelling wins when both are present.
			if _, both := req.Settings[canonical]; both {
				continue
			}
		}
		p[key] = coerce(model, key, req.Settings[k])
	}
	return p
}

func inputField(kind domain.ReferenceInputKind, genKind domain.GenerationKind) string {
	switch kind {
	case domain.InputFirstFrame:
		return "first_frame_image_url"
	case domain.InputLastFrame:
		return "last_frame_image_url"
	case domain.InputReferenceVideo:
		return "video_url"
	case domain.InputReferenceImage:
		if genKind == domain.KindImageToImage {
			return "reference_image_url"
		}
		return "image_url"
	default:
		return string(kind)
	}
}

func coerce(model domain.GenerationModel, key string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if isNumericKey(model, key) {
		if n, ok := domain.AsNumber(s); ok {
			if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
				return int64(n)
			}
			return n
		}
		return v
	}
	if isBooleanKey(model, key) {
		if b, ok := domain.AsBool(s); ok {
			return b
		}
	}
	return v
}

// isNumericKey lets the schema decide for declared keys; the well-known
// list only applies to keys the model does not describe.
func isNumericKey(model domain.GenerationModel, key string) bool {
	s, ok := model.Setting(key)
	if !ok {
		return numericKeys[key]
	}
	switch setting := s.(type) {
	case domain.NumberSetting:
		return true
	case domain.SelectSetting:
		return setting.IsNumeric()
	}
	return false
}

func isBooleanKey(model domain.GenerationModel, key string) bool {
	s, ok := model.Setting(key)
	if !ok {
		return booleanKeys[key]
	}
	return s.SettingType() == domain.SettingToggle
}

func sortedInputKinds(inputs map[domain.ReferenceInputKind]string) []domain.ReferenceInputKind {
	kinds := make([]domain.ReferenceInputKind, 0, len(inputs))
	for k := range inputs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
