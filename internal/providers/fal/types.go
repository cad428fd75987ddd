package fal

import (
	"encoding/json"
	"strings"
	"time"

	"genstudio/internal/domain"
)

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	CancelURL   string `json:"cancel_url"`
}

type statusResponse struct {
	Status        string          `json:"status"`
	QueuePosition *int            `json:"queue_position"`
	Logs          []logLine       `json:"logs"`
	Metrics       map[string]any  `json:"metrics"`
	ResponseURL   string          `json:"response_url"`
	Error         json.RawMessage `json:"error"`
}

type logLine struct {
	Message   string `json:"message"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func (l logLine) toDomain() domain.JobLog {
	out := domain.JobLog{Message: l.Message, Level: l.Level, Source: l.Source}
	if ts := strings.TrimSpace(l.Timestamp); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			out.Timestamp = t
		} else if t, err := time.Parse("2006-01-02T15:04:05.999999", ts); err == nil {
			out.Timestamp = t.UTC()
		}
	}
	return out
}

type fileObject struct {
	URL         string      `json:"url"`
	ContentType string      `json:"content_type"`
	FileName    string      `json:"file_name"`
	FileSize    json.Number `json:"file_size"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
}

func (f fileObject) toDomain() domain.File {
	size, _ := f.FileSize.Int64()
	return domain.File{
		URL:         f.URL,
		ContentType: f.ContentType,
		FileName:    f.FileName,
		FileSize:    size,
		Width:       f.Width,
		Height:      f.Height,
	}
}

type resultResponse struct {
	Images []fileObject `json:"images"`
	Image  *fileObject  `json:"image"`
	Video  *fileObject  `json:"video"`
	Seed   json.Number  `json:"seed"`
	Prompt string       `json:"prompt"`
}

func (r resultResponse) toOutput(raw []byte) *domain.Output {
	out := &domain.Output{Prompt: r.Prompt, Raw: json.RawMessage(append([]byte(nil), raw...))}
	for _, img := range r.Images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		out.Images = append(out.Images, img.toDomain())
	}
	if r.Image != nil && strings.TrimSpace(r.Image.URL) != "" {
		out.Images = append(out.Images, r.Image.toDomain())
	}
	if r.Video != nil && strings.TrimSpace(r.Video.URL) != "" {
		v := r.Video.toDomain()
		out.Video = &v
	}
	if r.Seed != "" {
		if seed, err := r.Seed.Int64(); err == nil {
			out.Seed = &seed
		} else if f, err := r.Seed.Float64(); err == nil {
			seed := int64(f)
			out.Seed = &seed
		}
	}
	return out
}

type uploadInitiateRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type uploadInitiateResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}
