package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"genstudio/internal/domain"
)

// MaxPromptRunes caps the prompt length in characters.
const MaxPromptRunes = 10000

// Validate checks req against the model's declared requirements and returns
// the first violation. It performs no I/O.
func Validate(model *domain.GenerationModel, req domain.GenerationRequest) error {
	if model == nil {
		return &domain.Error{
			Code:    domain.CodeModelNotFound,
			Field:   "model_id",
			Message: fmt.Sprintf("model %q is not in the catalog", req.ModelID),
		}
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && (model.RequiresPrompt() || req.Kind.IsTextFamily()) {
		return domain.ValidationError(domain.CodePromptRequired, "prompt", "prompt is required for this model")
	}
	if n := utf8.RuneCountInString(req.Prompt); n > MaxPromptRunes {
		return domain.ValidationError(domain.CodePromptTooLong, "prompt",
			fmt.Sprintf("prompt has %d characters, the limit is %d", n, MaxPromptRunes))
	}

	for _, kind := range model.RequiredInputs {
		if strings.TrimSpace(req.ReferenceInputs[kind]) == "" {
			return domain.ValidationError(domain.CodeMissingReferenceInput, string(kind),
				fmt.Sprintf("model %s requires a %s input", model.ID, kind))
		}
	}
	for _, kind := range sortedInputKinds(req.ReferenceInputs) {
		if strings.TrimSpace(req.ReferenceInputs[kind]) == "" {
			continue
		}
		if !model.AcceptsInput(kind) {
			return domain.ValidationError(domain.CodeUnsupportedReferenceInput, string(kind),
				fmt.Sprintf("model %s does not accept a %s input", model.ID, kind))
		}
	}

	for _, s := range model.Settings {
		if !s.IsRequired() {
			continue
		}
		v, ok := lookupSetting(req.Settings, s.SettingKey())
		if !ok || !s.Accepts(v) {
			return domain.ValidationError(domain.CodeMissingRequiredSetting, s.SettingKey(),
				fmt.Sprintf("setting %s is required", s.SettingKey()))
		}
	}
	return nil
}

// lookupSetting finds key in settings, also under its camelCase alias.
func lookupSetting(settings map[string]any, key string) (any, bool) {
	if v, ok := settings[key]; ok {
		return v, true
	}
	for alias, canonical := range settingAliases {
		if canonical != key {
			continue
		}
		if v, ok := settings[alias]; ok {
			return v, true
		}
	}
	return nil, false
}
