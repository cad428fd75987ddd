package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
)

const (
	defaultQueueBaseURL   = "https://queue.fal.run"
	defaultStorageBaseURL = "https://rest.alpha.fal.ai"
	maxResponseBytes      = 32 << 20
)

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	QueueBaseURL   string
	StorageBaseURL string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the fal queue API. It holds no per-job state and is safe
// for concurrent use.
type Client struct {
	apiKey         string
	queueBaseURL   string
	storageBaseURL string
	httpClient     *http.Client
	logger         *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	queueBaseURL := strings.TrimRight(strings.TrimSpace(opts.QueueBaseURL), "/")
	if queueBaseURL == "" {
		queueBaseURL = defaultQueueBaseURL
	}
	storageBaseURL := strings.TrimRight(strings.TrimSpace(opts.StorageBaseURL), "/")
	if storageBaseURL == "" {
		storageBaseURL = defaultStorageBaseURL
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:         apiKey,
		queueBaseURL:   queueBaseURL,
		storageBaseURL: storageBaseURL,
		httpClient:     httpClient,
		logger:         logger,
	}, nil
}

// Submit enqueues a job for modelID. It is never retried: a second call
// would create a second billable job.
func (c *Client) Submit(ctx context.Context, modelID string, payload map[string]any) (domain.Submission, error) {
	endpoint := c.queueBaseURL + "/" + strings.Trim(modelID, "/")
	status, body, err := c.do(ctx, "submit", http.MethodPost, endpoint, payload, "")
	if err != nil {
		return domain.Submission{}, transportError(domain.CodeSubmitError, "submit", "", err)
	}
	if status < 200 || status > 299 {
		return domain.Submission{}, providerError(domain.CodeSubmitError, "submit", status, body, "")
	}
	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Submission{}, transportError(domain.CodeSubmitError, "submit", "", fmt.Errorf("decode response: %w", err))
	}
	if strings.TrimSpace(resp.RequestID) == "" {
		return domain.Submission{}, &domain.Error{
			Code:       domain.CodeSubmitError,
			Message:    "fal: submit response carries no request_id",
			HTTPStatus: status,
		}
	}
	c.logger.Debug().Str("model", modelID).Str("request_id", resp.RequestID).Msg("fal job submitted")
	return domain.Submission{
		RequestID:   resp.RequestID,
		StatusURL:   resp.StatusURL,
		ResponseURL: resp.ResponseURL,
		CancelURL:   resp.CancelURL,
	}, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, modelID, requestID string, includeLogs bool) (domain.Job, error) {
	endpoint := c.requestURL(modelID, requestID) + "/status"
	if includeLogs {
		endpoint += "?logs=1"
	}
	status, body, err := c.do(ctx, "status", http.MethodGet, endpoint, nil, requestID)
	if err != nil {
		return domain.Job{}, transportError(domain.CodeStatusError, "status", requestID, err)
	}
	if status < 200 || status > 299 {
		return domain.Job{}, providerError(domain.CodeStatusError, "status", status, body, requestID)
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Job{}, transportError(domain.CodeStatusError, "status", requestID, fmt.Errorf("decode response: %w", err))
	}

	job := domain.Job{
		RequestID:     requestID,
		ModelID:       modelID,
		Status:        NormalizeStatus(resp.Status),
		QueuePosition: resp.QueuePosition,
		Metrics:       resp.Metrics,
	}
	for _, l := range resp.Logs {
		job.Logs = append(job.Logs, l.toDomain())
	}
	if job.Status != domain.JobStatusInQueue {
		job.QueuePosition = nil
	}
	// A completed job can still carry a provider error; it never produced output.
	if msg := errorField(resp.Error); msg != "" && (job.Status == domain.JobStatusCompleted || job.Status == domain.JobStatusFailed) {
		job.Status = domain.JobStatusFailed
		job.Error = msg
	}
	return job, nil
}

// Result fetches the output of a completed job.
func (c *Client) Result(ctx context.Context, modelID, requestID string) (*domain.Output, error) {
	status, body, err := c.do(ctx, "result", http.MethodGet, c.requestURL(modelID, requestID), nil, requestID)
	if err != nil {
		return nil, transportError(domain.CodeResultError, "result", requestID, err)
	}
	if stillRunning(status, body) {
		return nil, &domain.Error{
			Code:       domain.CodeResultNotReady,
			Message:    "fal: result requested before the job finished",
			HTTPStatus: status,
			RequestID:  requestID,
		}
	}
	if status < 200 || status > 299 {
		return nil, providerError(domain.CodeResultError, "result", status, body, requestID)
	}
	var resp resultResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, transportError(domain.CodeResultError, "result", requestID, fmt.Errorf("decode response: %w", err))
	}
	out := resp.toOutput(body)
	if len(out.Files()) == 0 {
		return nil, &domain.Error{
			Code:       domain.CodeResultError,
			Message:    "fal: result contains no media files",
			HTTPStatus: status,
			RequestID:  requestID,
		}
	}
	return out, nil
}

// Cancel asks the provider to stop a job. A job that already reached a
// terminal state is not an error.
func (c *Client) Cancel(ctx context.Context, modelID, requestID string) error {
	status, body, err := c.do(ctx, "cancel", http.MethodPost, c.requestURL(modelID, requestID)+"/cancel", nil, requestID)
	if err != nil {
		return transportError(domain.CodeCancelError, "cancel", requestID, err)
	}
	if status >= 200 && status <= 299 {
		return nil
	}
	if alreadyTerminal(status, body) {
		c.logger.Debug().Str("request_id", requestID).Int("status", status).Msg("fal cancel ignored, job already finished")
		return nil
	}
	return providerError(domain.CodeCancelError, "cancel", status, body, requestID)
}

// UploadFile stores data on the provider CDN and returns its public URL.
// The content type is sniffed from the bytes.
func (c *Client) UploadFile(ctx context.Context, data []byte, fileName string) (string, error) {
	if len(data) == 0 {
		return "", &domain.Error{Code: domain.CodeUploadError, Message: "fal: upload payload is empty"}
	}
	mt := mimetype.Detect(data)
	contentType := mt.String()
	name := strings.TrimSpace(path.Base(fileName))
	if name == "" || name == "." || name == "/" {
		name = "upload" + mt.Extension()
	}

	endpoint := c.storageBaseURL + "/storage/upload/initiate?storage_type=fal-cdn-v3"
	status, body, err := c.do(ctx, "upload_initiate", http.MethodPost, endpoint, uploadInitiateRequest{ContentType: contentType, FileName: name}, "")
	if err != nil {
		return "", transportError(domain.CodeUploadError, "upload initiate", "", err)
	}
	if status < 200 || status > 299 {
		return "", providerError(domain.CodeUploadError, "upload initiate", status, body, "")
	}
	var initiated uploadInitiateResponse
	if err := json.Unmarshal(body, &initiated); err != nil || initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", &domain.Error{Code: domain.CodeUploadError, Message: "fal: upload initiate returned no upload url", Err: err}
	}

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", transportError(domain.CodeUploadError, "upload", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall("upload", "error", time.Since(started).Seconds())
		return "", transportError(domain.CodeUploadError, "upload", "", err)
	}
	defer resp.Body.Close()
	putBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	metrics.RecordProviderCall("upload", statusLabel(resp.StatusCode), time.Since(started).Seconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", providerError(domain.CodeUploadError, "upload", resp.StatusCode, putBody, "")
	}
	c.logger.Debug().Str("content_type", contentType).Int("bytes", len(data)).Msg("fal file uploaded")
	return initiated.FileURL, nil
}

func (c *Client) requestURL(modelID, requestID string) string {
	return c.queueBaseURL + "/" + appID(modelID) + "/requests/" + url.PathEscape(requestID)
}

// appID strips sub-paths from a model id: queue status endpoints live under
// "owner/app" only.
func appID(modelID string) string {
	parts := strings.Split(strings.Trim(modelID, "/"), "/")
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return parts[0] + "/" + parts[1]
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, payload any, requestID string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall(op, "error", time.Since(started).Seconds())
		c.logger.Warn().Err(err).Str("op", op).Str("request_id", requestID).Msg("fal request failed")
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.RecordProviderCall(op, statusLabel(resp.StatusCode), time.Since(started).Seconds())
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Debug().
			Str("op", op).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Msg("fal request rejected")
	}
	return resp.StatusCode, body, nil
}

func errorField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return messageFrom(v)
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
