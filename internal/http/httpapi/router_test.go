package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/assets"
	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	"genstudio/internal/storage"
)

type fakeService struct {
	gens      map[string]*domain.Generation
	generated domain.GenerationRequest
	opts      generation.RunOptions
	userID    string
	err       error
	uploaded  string
}

func (f *fakeService) Generate(ctx context.Context, userID string, req domain.GenerationRequest, opts generation.RunOptions) (*generation.GenerationResult, error) {
	f.generated = req
	f.opts = opts
	f.userID = userID
	gen := &domain.Generation{ID: "gen-1", UserID: userID, ModelID: req.ModelID, Status: domain.JobStatusCompleted}
	if f.err != nil {
		return &generation.GenerationResult{Generation: gen}, f.err
	}
	return &generation.GenerationResult{
		Generation: gen,
		Output:     &domain.Output{Images: []domain.File{{URL: "https://fal.media/a.png"}}, Raw: json.RawMessage(`{"secret":1}`)},
		Assets:     []domain.Asset{{ID: "a1", GenerationID: "gen-1", Kind: domain.AssetKindImage, SourceRef: "generated/images/gen-1/image-01.png"}},
		Signed:     []domain.SignedAccess{{SourceRef: "generated/images/gen-1/image-01.png", SignedURL: "http://x/static/a?sig=1", ExpiresAt: time.Now().Add(time.Hour)}},
	}, nil
}

func (f *fakeService) Get(ctx context.Context, id string) (*generation.GenerationResult, error) {
	gen, ok := f.gens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &generation.GenerationResult{Generation: gen}, nil
}

func (f *fakeService) Cancel(ctx context.Context, id string) (*domain.Generation, error) {
	gen := f.gens[id]
	gen.Status = domain.JobStatusCancelled
	return gen, nil
}

func (f *fakeService) Upload(ctx context.Context, data []byte, fileName string) (string, error) {
	f.uploaded = fileName
	return "https://fal.media/files/" + fileName, nil
}

type fixture struct {
	handler http.Handler
	svc     *fakeService
	files   *storage.FileStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir(), "http://localhost:8080/static", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	signer, err := assets.NewSigner(assets.SignerOptions{Store: files})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	svc := &fakeService{gens: map[string]*domain.Generation{
		"mine":   {ID: "mine", UserID: "alice", ModelID: "fal-ai/flux/dev", Status: domain.JobStatusInProgress, RequestID: "req-1"},
		"theirs": {ID: "theirs", UserID: "bob", ModelID: "fal-ai/flux/dev", Status: domain.JobStatusInProgress},
	}}
	app := handlers.NewApp(handlers.Options{
		Models:      catalog.Default(),
		Generations: svc,
		Signer:      signer,
		Refresher:   assets.NewRefresher(signer, 0),
		Files:       files,
	})
	return fixture{
		handler: NewRouter(app, RouterOptions{Logger: zerolog.Nop(), RateLimitPerMin: 100}),
		svc:     svc,
		files:   files,
	}
}

func (f fixture) do(t *testing.T, method, target string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		Field        string `json:"field"`
		GenerationID string `json:"generation_id"`
		RequestID    string `json:"request_id"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	rec := newFixture(t).do(t, http.MethodGet, "/v1/healthz", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestListModelsByKind(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/models?kind=image-to-video&priority=fal-ai/veo3&limit=2", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Models []struct {
			ID    string   `json:"id"`
			Kinds []string `json:"kinds"`
		} `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 2 || body.Models[0].ID != "fal-ai/veo3" {
		t.Fatalf("models = %#v", body.Models)
	}

	if rec := f.do(t, http.MethodGet, "/v1/models?kind=sculpture", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status = %d", rec.Code)
	}
}

func TestGetModelWithSlashes(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/models/fal-ai/kling-video/v2.1/pro/image-to-video", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"first-frame"`) {
		t.Fatalf("get model: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/v1/models/fal-ai/unknown", nil, "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error.Code != "model_not_found" {
		t.Fatalf("unknown model: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateGeneration(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{
		"model_id": "fal-ai/flux/dev",
		"prompt":   "a lighthouse",
		"settings": map[string]any{"num_images": 2},
	}, "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.svc.userID != "alice" || f.svc.generated.Prompt != "a lighthouse" {
		t.Fatalf("service saw user=%q req=%#v", f.svc.userID, f.svc.generated)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatal("raw provider payload must not be exposed")
	}
	if !strings.Contains(rec.Body.String(), `"signed_url":"http://x/static/a?sig=1"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCreateGenerationRejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{"prompt": "x"}, "")
	env := decodeError(t, rec)
	if rec.Code != http.StatusBadRequest || env.Error.Field != "model_id" {
		t.Fatalf("missing model: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/generations", map[string]any{"model_id": "m", "kind": "sculpture"}, "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error.Field != "kind" {
		t.Fatalf("bad kind: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/generations", `{"model_id":"m","bogus":1}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", rec.Code)
	}

	for _, secs := range []int{601, 3600} {
		rec = f.do(t, http.MethodPost, "/v1/generations", map[string]any{"model_id": "m", "prompt": "x", "timeout_seconds": secs}, "")
		if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error.Field != "timeout_seconds" {
			t.Fatalf("timeout %d: %d %s", secs, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateGenerationPassesRunOptions(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{"model_id": "m", "prompt": "x", "timeout_seconds": 600}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.svc.opts.Timeout != 600*time.Second || f.svc.opts.OmitLogs {
		t.Fatalf("opts = %+v", f.svc.opts)
	}
}

func TestCreateGenerationMapsErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&domain.Error{Code: domain.CodePromptRequired, Field: "prompt"}, http.StatusBadRequest, "prompt_required"},
		{&domain.Error{Code: domain.CodeGenerationTimeout, LastStatus: domain.JobStatusInProgress}, http.StatusGatewayTimeout, "generation_timeout"},
		{&domain.Error{Code: domain.CodeGenerationFailed, Message: "nsfw"}, http.StatusBadGateway, "generation_failed"},
		{&domain.Error{Code: domain.CodeSubmitError}, http.StatusBadGateway, "submit_error"},
		{&domain.Error{Code: domain.CodeGenerationCancelled}, http.StatusConflict, "generation_cancelled"},
		{&domain.Error{Code: domain.CodeMissingCredentials}, http.StatusServiceUnavailable, "missing_credentials"},
		{&domain.Error{Code: domain.CodeStorageError}, http.StatusInternalServerError, "storage_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := newFixture(t)
			f.svc.err = tt.err
			rec := f.do(t, http.MethodPost, "/v1/generations", map[string]any{"model_id": "fal-ai/flux/dev", "prompt": "x"}, "")
			env := decodeError(t, rec)
			if rec.Code != tt.status || env.Error.Code != tt.code {
				t.Fatalf("got %d %s", rec.Code, rec.Body.String())
			}
			if env.Error.GenerationID != "gen-1" || env.Error.RequestID == "" {
				t.Fatalf("envelope = %#v", env.Error)
			}
		})
	}
}

func TestGenerationOwnership(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/v1/generations/mine", nil, "alice"); rec.Code != http.StatusOK {
		t.Fatalf("own generation: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/generations/theirs", nil, "alice"); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign generation: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/generations/missing", nil, "alice"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing generation: %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/v1/generations/mine/cancel", nil, "alice")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cancelled"`) {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "ref.png")
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || f.svc.uploaded != "ref.png" {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSignAndServeStatic(t *testing.T) {
	f := newFixture(t)
	key, err := f.files.Upload(context.Background(), "generated/images/g/image-01.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodPost, "/v1/assets/sign", map[string]any{"refs": []string{key, "https://fal.media/x.png"}, "ttl_seconds": 600}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sign: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Signed []domain.SignedAccess `json:"signed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Signed) != 2 || body.Signed[1].SignedURL != "https://fal.media/x.png" {
		t.Fatalf("signed = %#v", body.Signed)
	}

	u, err := url.Parse(body.Signed[0].SignedURL)
	if err != nil {
		t.Fatal(err)
	}
	rec = f.do(t, http.MethodGet, u.RequestURI(), nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Fatalf("static: %d %s", rec.Code, rec.Body.String())
	}

	q := u.Query()
	q.Set("expires", "9999999999")
	rec = f.do(t, http.MethodGet, u.Path+"?"+q.Encode(), nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tampered static: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/assets/sign", map[string]any{"refs": []string{}}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty refs: %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t).do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestWatchAssetStreamsSignedURL(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/assets/watch?ref=generated/images/g/image-01.png&ttl_seconds=600", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("watch: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	if err != nil || event != "event: signed\n" {
		t.Fatalf("event line = %q, %v", event, err)
	}
	data, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	var access domain.SignedAccess
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &access); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if !strings.Contains(access.SignedURL, "sig=") || !access.Expiring() {
		t.Fatalf("access = %#v", access)
	}
}

func TestWatchAssetEndsForAbsoluteURL(t *testing.T) {
	rec := newFixture(t).do(t, http.MethodGet, "/v1/assets/watch?ref="+url.QueryEscape("https://fal.media/x.png"), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("watch: %d", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), "event: signed"); got != 1 {
		t.Fatalf("events = %d, body %s", got, rec.Body.String())
	}
}

func TestWatchAssetRequiresRef(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/v1/assets/watch", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ref: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/assets/watch?ref=a.png&ttl_seconds=5", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("short ttl: %d", rec.Code)
	}
}
