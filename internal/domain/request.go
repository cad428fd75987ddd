package domain

// GenerationRequest is one user action against a model. Reference inputs
// are URLs of already-uploaded resources, never raw bytes.
type GenerationRequest struct {
	ModelID         string                        `json:"model_id"`
	Kind            GenerationKind                `json:"kind"`
	Prompt          string                        `json:"prompt,omitempty"`
	NegativePrompt  string                        `json:"negative_prompt,omitempty"`
	ReferenceInputs map[ReferenceInputKind]string `json:"reference_inputs,omitempty"`
	Settings        map[string]any                `json:"settings,omitempty"`
}
