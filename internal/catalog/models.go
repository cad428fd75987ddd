package catalog

import "genstudio/internal/domain"

const providerFal = "fal"

// DefaultModels is the built-in catalog, in display order.
func DefaultModels() []domain.GenerationModel {
	imageSizes := domain.SelectSetting{
		Key:     "image_size",
		Label:   "Image size",
		Default: "landscape_4_3",
		Options: []domain.Option{
			{Label: "Square HD", Value: "square_hd"},
			{Label: "Square", Value: "square"},
			{Label: "Portrait 4:3", Value: "portrait_4_3"},
			{Label: "Portrait 16:9", Value: "portrait_16_9"},
			{Label: "Landscape 4:3", Value: "landscape_4_3"},
			{Label: "Landscape 16:9", Value: "landscape_16_9"},
		},
	}
	numImages := domain.SelectSetting{
		Key:     "num_images",
		Label:   "Number of images",
		Default: 1,
		Options: []domain.Option{
			{Label: "1", Value: 1},
			{Label: "2", Value: 2},
			{Label: "3", Value: 3},
			{Label: "4", Value: 4},
		},
	}
	safety := domain.ToggleSetting{Key: "enable_safety_checker", Label: "Safety checker", Default: true}
	seed := domain.NumberSetting{Key: "seed", Min: f64(0)}
	outputFormat := domain.SelectSetting{
		Key:     "output_format",
		Default: "jpeg",
		Options: []domain.Option{{Label: "JPEG", Value: "jpeg"}, {Label: "PNG", Value: "png"}},
	}
	aspectRatio := func(def string, values ...string) domain.SelectSetting {
		opts := make([]domain.Option, 0, len(values))
		for _, v := range values {
			opts = append(opts, domain.Option{Label: v, Value: v})
		}
		return domain.SelectSetting{Key: "aspect_ratio", Label: "Aspect ratio", Default: def, Options: opts}
	}

	return []domain.GenerationModel{
		{
			ID:          "fal-ai/flux/dev",
			Name:        "FLUX.1 [dev]",
			Description: "12B parameter flow transformer for high quality text-to-image",
			Provider:    providerFal,
			MediaType:   domain.MediaTypeImage,
			Settings: []domain.Setting{
				imageSizes,
				domain.NumberSetting{Key: "num_inference_steps", Label: "Steps", Default: f64(28), Min: f64(1), Max: f64(50)},
				domain.NumberSetting{Key: "guidance_scale", Label: "Guidance", Default: f64(3.5), Min: f64(1), Max: f64(20)},
				numImages,
				safety,
				seed,
			},
		},
		{
			ID:          "fal-ai/flux/schnell",
			Name:        "FLUX.1 [schnell]",
			Description: "Fast text-to-image in 1 to 4 steps",
			Provider:    providerFal,
			MediaType:   domain.MediaTypeImage,
			Settings: []domain.Setting{
				imageSizes,
				domain.NumberSetting{Key: "num_inference_steps", Label: "Steps", Default: f64(4), Min: f64(1), Max: f64(12)},
				numImages,
				safety,
			},
		},
		{
			ID:          "fal-ai/flux-pro/v1.1-ultra",
			Name:        "FLUX1.1 [pro] ultra",
			Description: "Up to 2K resolution text-to-image",
			Provider:    providerFal,
			MediaType:   domain.MediaTypeImage,
			Settings: []domain.Setting{
				aspectRatio("16:9", "21:9", "16:9", "4:3", "1:1", "3:4", "9:16"),
				domain.ToggleSetting{Key: "raw", Label: "Raw mode"},
				outputFormat,
				numImages,
			},
		},
		{
			ID:             "fal-ai/flux-pro/kontext",
			Name:           "FLUX.1 Kontext [pro]",
			Description:    "Edit an image from a text instruction",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeImage,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceImage},
			Settings: []domain.Setting{
				domain.NumberSetting{Key: "guidance_scale", Label: "Guidance", Default: f64(3.5), Min: f64(1), Max: f64(20)},
				numImages,
				outputFormat,
			},
		},
		{
			ID:             "fal-ai/nano-banana/edit",
			Name:           "Nano Banana Edit",
			Description:    "Gemini image editing",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeImage,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceImage},
			Settings:       []domain.Setting{numImages, outputFormat},
		},
		{
			ID:             "fal-ai/flux-pro/v1/fill",
			Name:           "FLUX.1 Fill [pro]",
			Description:    "Inpaint masked regions of an image",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeImage,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceImage},
			Settings: []domain.Setting{
				domain.TextSetting{Key: "mask_url", Label: "Mask URL", Required: true},
				numImages,
				outputFormat,
			},
		},
		{
			ID:             "fal-ai/kling-video/v2.1/pro/image-to-video",
			Name:           "Kling 2.1 Pro",
			Description:    "Image-to-video with optional end frame",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeVideo,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputFirstFrame},
			OptionalInputs: []domain.ReferenceInputKind{domain.InputLastFrame},
			Settings: []domain.Setting{
				domain.SelectSetting{
					Key:     "duration",
					Label:   "Duration",
					Default: "5",
					Options: []domain.Option{{Label: "5s", Value: "5"}, {Label: "10s", Value: "10"}},
				},
				domain.NumberSetting{Key: "cfg_scale", Label: "CFG scale", Default: f64(0.5), Min: f64(0), Max: f64(1)},
			},
		},
		{
			ID:             "fal-ai/minimax/hailuo-02/standard/image-to-video",
			Name:           "Hailuo 02",
			Description:    "MiniMax image-to-video at 768p",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeVideo,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceImage},
			Settings: []domain.Setting{
				domain.SelectSetting{
					Key:     "duration",
					Default: "6",
					Options: []domain.Option{{Label: "6s", Value: "6"}, {Label: "10s", Value: "10"}},
				},
				domain.ToggleSetting{Key: "prompt_optimizer", Label: "Prompt optimizer", Default: true},
			},
		},
		{
			ID:             "fal-ai/veo3",
			Name:           "Veo 3",
			Description:    "Google text-to-video with native audio",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeVideo,
			OptionalInputs: []domain.ReferenceInputKind{domain.InputReferenceImage},
			Settings: []domain.Setting{
				aspectRatio("16:9", "16:9", "9:16"),
				domain.SelectSetting{Key: "duration", Default: "8s", Options: []domain.Option{{Label: "8s", Value: "8s"}}},
				domain.ToggleSetting{Key: "generate_audio", Label: "Generate audio", Default: true},
				domain.ToggleSetting{Key: "enhance_prompt", Label: "Enhance prompt", Default: true},
			},
		},
		{
			ID:             "fal-ai/wan/v2.2-a14b/video-to-video",
			Name:           "Wan 2.2 Video-to-Video",
			Description:    "Restyle an existing clip",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeVideo,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceVideo},
			Settings: []domain.Setting{
				domain.NumberSetting{Key: "strength", Label: "Strength", Default: f64(0.9), Min: f64(0), Max: f64(1)},
				domain.NumberSetting{Key: "num_inference_steps", Default: f64(27), Min: f64(2), Max: f64(40)},
			},
		},
		{
			ID:             "fal-ai/sync-lipsync/v2",
			Name:           "Sync Lipsync 2.0",
			Description:    "Lip-sync a video to an audio track",
			Provider:       providerFal,
			MediaType:      domain.MediaTypeVideo,
			RequiredInputs: []domain.ReferenceInputKind{domain.InputReferenceVideo},
			PromptOptional: true,
			Settings: []domain.Setting{
				domain.TextSetting{Key: "audio_url", Label: "Audio URL", Required: true},
				domain.SelectSetting{
					Key:     "sync_mode",
					Default: "cut_off",
					Options: []domain.Option{
						{Label: "Cut off", Value: "cut_off"},
						{Label: "Loop", Value: "loop"},
						{Label: "Bounce", Value: "bounce"},
					},
				},
			},
		},
	}
}

// Default builds a registry over DefaultModels.
func Default() *Registry {
	return MustNew(DefaultModels())
}

func f64(v float64) *float64 { return &v }
