package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"genstudio/internal/domain"
)

type statusStep struct {
	job domain.Job
	err error
}

type fakeJobClient struct {
	mu sync.Mutex

	submitErr error
	steps     []statusStep
	result    *domain.Output
	resultErr error

	submits   int
	statuses  int
	results   int
	cancels   int
	logs      []bool
	payload   map[string]any
	cancelErr error
}

func (f *fakeJobClient) Submit(ctx context.Context, modelID string, payload map[string]any) (domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.payload = payload
	if f.submitErr != nil {
		return domain.Submission{}, f.submitErr
	}
	return domain.Submission{RequestID: "req-1"}, nil
}

func (f *fakeJobClient) Status(ctx context.Context, modelID, requestID string, includeLogs bool) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.statuses
	f.statuses++
	f.logs = append(f.logs, includeLogs)
	if len(f.steps) == 0 {
		return domain.Job{RequestID: requestID, Status: domain.JobStatusInQueue}, nil
	}
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	step.job.RequestID = requestID
	return step.job, step.err
}

func (f *fakeJobClient) Result(ctx context.Context, modelID, requestID string) (*domain.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results++
	return f.result, f.resultErr
}

func (f *fakeJobClient) Cancel(ctx context.Context, modelID, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.cancelErr = ctx.Err()
	return nil
}

func (f *fakeJobClient) counts() (submits, statuses, results, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.statuses, f.results, f.cancels
}

func status(s domain.JobStatus) statusStep { return statusStep{job: domain.Job{Status: s}} }

func newTestRunner(t *testing.T, client JobClient) *Runner {
	t.Helper()
	r, err := NewRunner(RunnerOptions{Client: client, PollInterval: 10 * time.Millisecond, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func fluxRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		ModelID:  "fal-ai/flux/dev",
		Kind:     domain.KindTextToImage,
		Prompt:   "a red fox",
		Settings: map[string]any{"num_images": "2"},
	}
}

func TestRunCompletes(t *testing.T) {
	client := &fakeJobClient{
		steps: []statusStep{
			status(domain.JobStatusInQueue),
			status(domain.JobStatusInProgress),
			status(domain.JobStatusCompleted),
		},
		result: &domain.Output{Images: []domain.File{{URL: "https://cdn/a.png"}}},
	}
	runner := newTestRunner(t, client)

	var progress []domain.JobStatus
	var submitted string
	out, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{
		OnProgress: func(j domain.Job) { progress = append(progress, j.Status) },
		OnSubmit:   func(s domain.Submission) { submitted = s.RequestID },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Images) != 1 {
		t.Fatalf("output = %#v", out)
	}
	if len(progress) != 3 || progress[2] != domain.JobStatusCompleted {
		t.Fatalf("progress = %v, want 3 callbacks ending in completed", progress)
	}
	if submitted != "req-1" {
		t.Fatalf("OnSubmit got %q", submitted)
	}
	if client.payload["num_images"] != int64(2) {
		t.Fatalf("payload num_images = %#v", client.payload["num_images"])
	}
	submits, _, results, cancels := client.counts()
	if submits != 1 || results != 1 || cancels != 0 {
		t.Fatalf("submits=%d results=%d cancels=%d", submits, results, cancels)
	}
}

func TestRunValidationFailureSkipsNetwork(t *testing.T) {
	client := &fakeJobClient{}
	runner := newTestRunner(t, client)
	req := domain.GenerationRequest{ModelID: "fal-ai/kling-video/v2.1/pro/image-to-video", Kind: domain.KindImageToVideo, Prompt: "go"}
	_, err := runner.Run(context.Background(), mustModel(t, req.ModelID), req, RunOptions{})
	if !errors.Is(err, domain.ErrMissingReferenceInput) {
		t.Fatalf("err = %v, want missing_reference_input", err)
	}
	if submits, statuses, _, _ := client.counts(); submits != 0 || statuses != 0 {
		t.Fatalf("network used: submits=%d statuses=%d", submits, statuses)
	}
}

func TestRunTimeout(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{status(domain.JobStatusInProgress)}}
	runner := newTestRunner(t, client)

	start := time.Now()
	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{
		PollInterval: 10 * time.Millisecond,
		Timeout:      100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	derr, ok := domain.AsError(err)
	if !ok || derr.Code != domain.CodeGenerationTimeout {
		t.Fatalf("err = %v, want generation_timeout", err)
	}
	if derr.RequestID != "req-1" || derr.LastStatus != domain.JobStatusInProgress {
		t.Fatalf("timeout error = %#v", derr)
	}
	if elapsed < 100*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("elapsed = %s, want ~100ms", elapsed)
	}
	if _, _, _, cancels := client.counts(); cancels != 0 {
		t.Fatalf("timeout must not cancel the remote job")
	}
}

func TestRunToleratesTransientStatusErrors(t *testing.T) {
	transient := statusStep{err: &domain.Error{Code: domain.CodeStatusError, Message: "502"}}
	client := &fakeJobClient{
		steps: []statusStep{
			transient,
			transient,
			status(domain.JobStatusInProgress),
			transient,
			status(domain.JobStatusCompleted),
		},
		result: &domain.Output{Images: []domain.File{{URL: "https://cdn/a.png"}}},
	}
	runner := newTestRunner(t, client)

	if _, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if submits, statuses, _, _ := client.counts(); submits != 1 || statuses != 5 {
		t.Fatalf("submits=%d statuses=%d", submits, statuses)
	}
}

func TestRunGivesUpAfterConsecutiveStatusErrors(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{{err: errors.New("connection reset")}}}
	runner := newTestRunner(t, client)

	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != domain.CodeStatusError || derr.RequestID != "req-1" {
		t.Fatalf("err = %#v, want status_error with request id", err)
	}
	if submits, statuses, _, _ := client.counts(); submits != 1 || statuses != DefaultMaxStatusErrors {
		t.Fatalf("submits=%d statuses=%d", submits, statuses)
	}
}

func TestRunProviderFailure(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{{job: domain.Job{Status: domain.JobStatusFailed, Error: "nsfw"}}}}
	runner := newTestRunner(t, client)

	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != domain.CodeGenerationFailed || derr.Message != "nsfw" {
		t.Fatalf("err = %v, want generation_failed(nsfw)", err)
	}
	if derr.Category() != domain.CategoryProviderLogic {
		t.Fatalf("category = %s", derr.Category())
	}
}

func TestRunProviderCancelled(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{status(domain.JobStatusCancelled)}}
	runner := newTestRunner(t, client)
	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{})
	if !errors.Is(err, domain.ErrGenerationCancelled) {
		t.Fatalf("err = %v, want generation_cancelled", err)
	}
}

func TestRunResultFailureIsInconsistency(t *testing.T) {
	client := &fakeJobClient{
		steps:     []statusStep{status(domain.JobStatusCompleted)},
		resultErr: &domain.Error{Code: domain.CodeResultNotReady},
	}
	runner := newTestRunner(t, client)
	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{})
	derr, ok := domain.AsError(err)
	if !ok || derr.Code != domain.CodeResultError {
		t.Fatalf("err = %v, want result_error", err)
	}
	if !errors.Is(err, domain.ErrResultNotReady) {
		t.Fatalf("cause should stay reachable: %v", err)
	}
}

func TestRunCallerCancel(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{status(domain.JobStatusInProgress)}}
	runner := newTestRunner(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := runner.Run(ctx, mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{PollInterval: 10 * time.Millisecond, Timeout: time.Minute})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrGenerationCancelled) {
		t.Fatalf("err = %v, want generation_cancelled", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("cancel took %s", elapsed)
	}
	_, statusesAtReturn, _, cancels := client.counts()
	if cancels != 1 {
		t.Fatalf("cancels = %d, want 1", cancels)
	}
	if client.cancelErr != nil {
		t.Fatalf("provider cancel must not use the cancelled context")
	}

	time.Sleep(50 * time.Millisecond)
	if _, statuses, _, _ := client.counts(); statuses != statusesAtReturn {
		t.Fatalf("status polled after cancel: %d -> %d", statusesAtReturn, statuses)
	}
}

func TestResumeDetachedLeavesJobRunning(t *testing.T) {
	client := &fakeJobClient{steps: []statusStep{status(domain.JobStatusInProgress)}}
	runner := newTestRunner(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := runner.Resume(ctx, "fal-ai/flux/dev", "req-3", RunOptions{PollInterval: 10 * time.Millisecond, Timeout: time.Minute, DetachOnStop: true})
	if !errors.Is(err, ErrDetached) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want detached stop", err)
	}
	if errors.Is(err, domain.ErrGenerationCancelled) {
		t.Fatalf("detached stop must not report a cancelled generation")
	}
	if _, _, _, cancels := client.counts(); cancels != 0 {
		t.Fatalf("cancels = %d, want 0", cancels)
	}
}

func TestStatusLogs(t *testing.T) {
	tests := []struct {
		name string
		opts RunOptions
		want bool
	}{
		{"default", RunOptions{}, true},
		{"omitted", RunOptions{OmitLogs: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeJobClient{
				steps:  []statusStep{status(domain.JobStatusCompleted)},
				result: &domain.Output{Images: []domain.File{{URL: "https://cdn/a.png"}}},
			}
			if _, err := newTestRunner(t, client).Resume(context.Background(), "fal-ai/flux/dev", "req-1", tt.opts); err != nil {
				t.Fatalf("Resume: %v", err)
			}
			if len(client.logs) != 1 || client.logs[0] != tt.want {
				t.Fatalf("includeLogs = %v, want [%v]", client.logs, tt.want)
			}
		})
	}
}

func TestRunIgnoresStatusRegression(t *testing.T) {
	client := &fakeJobClient{
		steps: []statusStep{
			status(domain.JobStatusInProgress),
			status(domain.JobStatusInQueue),
			status(domain.JobStatusCompleted),
		},
		result: &domain.Output{Images: []domain.File{{URL: "https://cdn/a.png"}}},
	}
	runner := newTestRunner(t, client)
	var seen []domain.JobStatus
	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{
		OnProgress: func(j domain.Job) { seen = append(seen, j.Status) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen[1] != domain.JobStatusInProgress {
		t.Fatalf("statuses = %v, regression should be hidden", seen)
	}
}

func TestResume(t *testing.T) {
	client := &fakeJobClient{
		steps:  []statusStep{status(domain.JobStatusCompleted)},
		result: &domain.Output{Video: &domain.File{URL: "https://cdn/v.mp4"}},
	}
	runner := newTestRunner(t, client)
	out, err := runner.Resume(context.Background(), "fal-ai/veo3", "req-7", RunOptions{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if out.Video == nil {
		t.Fatalf("output = %#v", out)
	}
	if submits, _, _, _ := client.counts(); submits != 0 {
		t.Fatalf("resume must not submit")
	}
}

func TestRunWithoutCredentials(t *testing.T) {
	runner := newTestRunner(t, UnavailableClient{})
	_, err := runner.Run(context.Background(), mustModel(t, "fal-ai/flux/dev"), fluxRequest(), RunOptions{})
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("err = %v, want missing_credentials", err)
	}
}
