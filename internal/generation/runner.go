package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultTimeout         = 10 * time.Minute
	DefaultMaxStatusErrors = 3
	defaultCancelTimeout   = 5 * time.Second
)

// JobClient is the provider surface the runner drives.
type JobClient interface {
	Submit(ctx context.Context, modelID string, payload map[string]any) (domain.Submission, error)
	Status(ctx context.Context, modelID, requestID string, includeLogs bool) (domain.Job, error)
	Result(ctx context.Context, modelID, requestID string) (*domain.Output, error)
	Cancel(ctx context.Context, modelID, requestID string) error
}

// RunOptions tunes a single run. Zero durations fall back to the runner
// defaults.
type RunOptions struct {
	OnProgress   func(domain.Job)
	OnSubmit     func(domain.Submission)
	PollInterval time.Duration
	Timeout      time.Duration
	// OmitLogs skips provider logs in status calls. Logs are requested by
	// default.
	OmitLogs bool
	// DetachOnStop stops polling without cancelling the provider job when
	// ctx is done, for pollers that do not own the job.
	DetachOnStop bool
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Client       JobClient
	Logger       *infra.Logger
	PollInterval time.Duration
	Timeout      time.Duration
	// MaxStatusErrors is the number of consecutive failed status calls
	// tolerated before the run gives up.
	MaxStatusErrors int
	CancelTimeout   time.Duration
}

// Runner drives a generation from submit to a terminal state. Each Run is
// independent; a Runner may serve any number of concurrent runs.
type Runner struct {
	client          JobClient
	logger          *infra.Logger
	pollInterval    time.Duration
	timeout         time.Duration
	maxStatusErrors int
	cancelTimeout   time.Duration
}

// NewRunner constructs a runner with defaults applied.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Client == nil {
		return nil, errors.New("generation: job client is required")
	}
	r := &Runner{
		client:          opts.Client,
		logger:          opts.Logger,
		pollInterval:    opts.PollInterval,
		timeout:         opts.Timeout,
		maxStatusErrors: opts.MaxStatusErrors,
		cancelTimeout:   opts.CancelTimeout,
	}
	if r.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		r.logger = &l
	}
	if r.pollInterval <= 0 {
		r.pollInterval = DefaultPollInterval
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxStatusErrors <= 0 {
		r.maxStatusErrors = DefaultMaxStatusErrors
	}
	if r.cancelTimeout <= 0 {
		r.cancelTimeout = defaultCancelTimeout
	}
	return r, nil
}

// Run validates req, submits it exactly once and polls until the job ends,
// the timeout elapses or ctx is cancelled. Cancelling ctx asks the provider
// to cancel the job before returning generation_cancelled.
func (r *Runner) Run(ctx context.Context, model *domain.GenerationModel, req domain.GenerationRequest, opts RunOptions) (*domain.Output, error) {
	if err := Validate(model, req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.Error{Code: domain.CodeGenerationCancelled, Message: "generation cancelled before submit", Err: err}
	}

	started := time.Now()
	payload := BuildPayload(*model, req)
	sub, err := r.client.Submit(ctx, model.ID, payload)
	if err != nil {
		metrics.RecordRun(model.ID, string(domain.CodeOf(err)), time.Since(started).Seconds())
		return nil, err
	}
	r.logger.Info().Str("model", model.ID).Str("request_id", sub.RequestID).Msg("generation submitted")
	if opts.OnSubmit != nil {
		opts.OnSubmit(sub)
	}
	return r.poll(ctx, model.ID, sub.RequestID, opts, started)
}

// Resume polls a job submitted earlier, for example after a timeout.
func (r *Runner) Resume(ctx context.Context, modelID, requestID string, opts RunOptions) (*domain.Output, error) {
	if requestID == "" {
		return nil, fmt.Errorf("generation: resume needs a request id")
	}
	return r.poll(ctx, modelID, requestID, opts, time.Now())
}

// Cancel forwards a cancel request for an already submitted job.
func (r *Runner) Cancel(ctx context.Context, modelID, requestID string) error {
	return r.client.Cancel(ctx, modelID, requestID)
}

func (r *Runner) poll(ctx context.Context, modelID, requestID string, opts RunOptions, started time.Time) (out *domain.Output, err error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = r.pollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	defer func() {
		outcome := string(domain.JobStatusCompleted)
		if err != nil {
			outcome = string(domain.CodeOf(err))
		}
		metrics.RecordRun(modelID, outcome, time.Since(started).Seconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	log := r.logger.With().Str("model", modelID).Str("request_id", requestID).Logger()
	last := domain.JobStatusInQueue
	failures := 0

	for {
		select {
		case <-runCtx.Done():
			return nil, r.stopped(ctx, modelID, requestID, last, opts.DetachOnStop)
		case <-timer.C:
		}

		job, statusErr := r.client.Status(runCtx, modelID, requestID, !opts.OmitLogs)
		if statusErr != nil {
			if runCtx.Err() != nil {
				return nil, r.stopped(ctx, modelID, requestID, last, opts.DetachOnStop)
			}
			failures++
			if failures >= r.maxStatusErrors {
				log.Error().Err(statusErr).Int("attempts", failures).Msg("status polling gave up")
				return nil, withRequestID(statusErr, domain.CodeStatusError, requestID)
			}
			log.Warn().Err(statusErr).Int("attempt", failures).Msg("status poll failed, retrying")
			timer.Reset(interval)
			continue
		}
		failures = 0

		if job.Status != last && !last.CanTransition(job.Status) {
			log.Debug().Str("status", string(job.Status)).Str("last_status", string(last)).Msg("ignoring status regression")
			job.Status = last
		}
		if job.Status != last {
			log.Debug().Str("status", string(job.Status)).Msg("generation status changed")
		}
		last = job.Status
		if opts.OnProgress != nil {
			opts.OnProgress(job)
		}

		switch job.Status {
		case domain.JobStatusCompleted:
			result, resultErr := r.client.Result(runCtx, modelID, requestID)
			if resultErr != nil {
				if runCtx.Err() != nil {
					return nil, r.stopped(ctx, modelID, requestID, last, opts.DetachOnStop)
				}
				return nil, withRequestID(resultErr, domain.CodeResultError, requestID)
			}
			log.Info().Int("files", len(result.Files())).Msg("generation completed")
			return result, nil
		case domain.JobStatusFailed:
			msg := job.Error
			if msg == "" {
				msg = "provider reported failure"
			}
			return nil, &domain.Error{
				Code:       domain.CodeGenerationFailed,
				Message:    msg,
				RequestID:  requestID,
				LastStatus: last,
				Context:    map[string]any{"provider_error": job.Error},
			}
		case domain.JobStatusCancelled:
			return nil, &domain.Error{
				Code:       domain.CodeGenerationCancelled,
				Message:    "provider cancelled the job",
				RequestID:  requestID,
				LastStatus: last,
			}
		}
		timer.Reset(interval)
	}
}

// ErrDetached is returned when a detached poll stops because its context
// ended. The provider job keeps running.
var ErrDetached = errors.New("generation: polling stopped, job left running")

// stopped decides between a caller cancel and a deadline once runCtx is
// done. Only a caller cancel is forwarded to the provider, and only when
// the poll is not detached.
func (r *Runner) stopped(ctx context.Context, modelID, requestID string, last domain.JobStatus, detach bool) error {
	if ctx.Err() == nil {
		r.logger.Warn().Str("model", modelID).Str("request_id", requestID).Str("last_status", string(last)).Msg("generation timed out")
		return &domain.Error{
			Code:       domain.CodeGenerationTimeout,
			Message:    fmt.Sprintf("no terminal status, last status %s", last),
			RequestID:  requestID,
			LastStatus: last,
		}
	}

	if detach {
		r.logger.Info().Str("model", modelID).Str("request_id", requestID).Str("last_status", string(last)).Msg("polling stopped, job left running")
		return fmt.Errorf("%w: %w", ErrDetached, ctx.Err())
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cancelTimeout)
	defer cancel()
	if err := r.client.Cancel(cctx, modelID, requestID); err != nil {
		r.logger.Warn().Err(err).Str("request_id", requestID).Msg("provider cancel failed")
	}
	return &domain.Error{
		Code:       domain.CodeGenerationCancelled,
		Message:    "generation cancelled by caller",
		RequestID:  requestID,
		LastStatus: last,
		Err:        ctx.Err(),
	}
}

// withRequestID makes sure err is a coded error carrying requestID.
func withRequestID(err error, fallback domain.ErrorCode, requestID string) error {
	if derr, ok := domain.AsError(err); ok && derr.Code == fallback {
		if derr.RequestID == "" {
			cp := *derr
			cp.RequestID = requestID
			return &cp
		}
		return derr
	}
	return &domain.Error{Code: fallback, Message: "provider call failed", RequestID: requestID, Err: err}
}

// UnavailableClient stands in for the provider when no API key is
// configured. Every call fails with missing credentials.
type UnavailableClient struct{}

func (UnavailableClient) Submit(context.Context, string, map[string]any) (domain.Submission, error) {
	return domain.Submission{}, domain.ErrMissingCredentials
}

func (UnavailableClient) Status(context.Context, string, string, bool) (domain.Job, error) {
	return domain.Job{}, domain.ErrMissingCredentials
}

func (UnavailableClient) Result(context.Context, string, string) (*domain.Output, error) {
	return nil, domain.ErrMissingCredentials
}

func (UnavailableClient) Cancel(context.Context, string, string) error {
	return domain.ErrMissingCredentials
}
