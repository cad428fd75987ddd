package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/assets"
	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// ModelResolver resolves catalog entries by id.
type ModelResolver interface {
	Get(id string) (domain.GenerationModel, error)
}

// Uploader pushes reference media to the provider.
type Uploader interface {
	UploadFile(ctx context.Context, data []byte, fileName string) (string, error)
}

// AssetPersister records the outputs of a finished generation.
type AssetPersister interface {
	Persist(ctx context.Context, gen *domain.Generation, out *domain.Output) ([]domain.Asset, error)
}

// URLSigner turns asset references into time-limited URLs.
type URLSigner interface {
	SignMany(ctx context.Context, refs []string, opts assets.SignOptions) ([]domain.SignedAccess, error)
}

// ServiceOptions wires a Service.
type ServiceOptions struct {
	Models      ModelResolver
	Runner      *Runner
	Uploader    Uploader
	Generations domain.GenerationRepository
	Assets      domain.AssetRepository
	Persister   AssetPersister
	Signer      URLSigner
	SignTTL     time.Duration
	Logger      *infra.Logger
}

// GenerationResult is what a caller gets back for one generation.
type GenerationResult struct {
	Generation *domain.Generation
	Output     *domain.Output
	Assets     []domain.Asset
	Signed     []domain.SignedAccess
}

// Service ties the catalog, the runner and the record store together.
type Service struct {
	models      ModelResolver
	runner      *Runner
	uploader    Uploader
	generations domain.GenerationRepository
	assets      domain.AssetRepository
	persister   AssetPersister
	signer      URLSigner
	signTTL     time.Duration
	logger      *infra.Logger
}

// NewService validates opts.
func NewService(opts ServiceOptions) (*Service, error) {
	switch {
	case opts.Models == nil:
		return nil, errors.New("generation: model resolver is required")
	case opts.Runner == nil:
		return nil, errors.New("generation: runner is required")
	case opts.Generations == nil:
		return nil, errors.New("generation: generation repository is required")
	case opts.Assets == nil:
		return nil, errors.New("generation: asset repository is required")
	case opts.Persister == nil:
		return nil, errors.New("generation: asset persister is required")
	case opts.Signer == nil:
		return nil, errors.New("generation: url signer is required")
	}
	s := &Service{
		models:      opts.Models,
		runner:      opts.Runner,
		uploader:    opts.Uploader,
		generations: opts.Generations,
		assets:      opts.Assets,
		persister:   opts.Persister,
		signer:      opts.Signer,
		signTTL:     opts.SignTTL,
		logger:      opts.Logger,
	}
	if s.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		s.logger = &l
	}
	return s, nil
}

// Generate runs req to completion for userID. Validation failures return
// before anything is stored. Once the record exists, the returned result
// carries the Generation even when err is non-nil, so callers can report
// its id.
func (s *Service) Generate(ctx context.Context, userID string, req domain.GenerationRequest, opts RunOptions) (*GenerationResult, error) {
	model, err := s.models.Get(req.ModelID)
	if err != nil {
		return nil, err
	}
	if req.Kind == "" {
		req.Kind = catalog.InferGenerationKinds(model)[0]
	}
	if err := Validate(&model, req); err != nil {
		return nil, err
	}

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("generation: encode request: %w", err)
	}
	gen := &domain.Generation{
		ID:          uuid.NewString(),
		UserID:      userID,
		ModelID:     model.ID,
		Kind:        req.Kind,
		Status:      domain.JobStatusInQueue,
		Prompt:      req.Prompt,
		RequestJSON: requestJSON,
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, &domain.Error{Code: domain.CodeStorageError, Message: "record generation", Err: err}
	}
	log := s.logger.With().Str("generation_id", gen.ID).Str("model", model.ID).Logger()
	log.Info().Str("kind", string(req.Kind)).Msg("generation started")

	out, runErr := s.runner.Run(ctx, &model, req, s.tracking(ctx, gen, opts))
	return s.finish(ctx, gen, out, runErr)
}

// tracking wraps the caller hooks so the stored record follows the job.
// Every poll touches the record while it is in flight, which keeps the
// reconciler away from generations that still have a live poller. Hooks run
// on the polling goroutine, one at a time.
func (s *Service) tracking(ctx context.Context, gen *domain.Generation, opts RunOptions) RunOptions {
	wctx := context.WithoutCancel(ctx)
	wrapped := opts
	wrapped.OnSubmit = func(sub domain.Submission) {
		gen.RequestID = sub.RequestID
		if err := s.generations.Update(wctx, gen.ID, domain.GenerationPatch{RequestID: &sub.RequestID}); err != nil {
			s.logger.Error().Err(err).Str("generation_id", gen.ID).Msg("store request id")
		}
		if opts.OnSubmit != nil {
			opts.OnSubmit(sub)
		}
	}
	wrapped.OnProgress = func(job domain.Job) {
		if !job.Status.IsTerminal() {
			status := job.Status
			gen.Status = status
			if _, err := s.generations.UpdateInFlight(wctx, gen.ID, domain.GenerationPatch{Status: &status}); err != nil {
				s.logger.Warn().Err(err).Str("generation_id", gen.ID).Msg("store status")
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(job)
		}
	}
	return wrapped
}

// finish stores the outcome of a run. Writes ignore cancellation of ctx so a
// caller that gave up still leaves a consistent record behind. Only the
// writer that moves the record out of flight persists assets; a writer that
// loses returns what the winner stored.
func (s *Service) finish(ctx context.Context, gen *domain.Generation, out *domain.Output, runErr error) (*GenerationResult, error) {
	wctx := context.WithoutCancel(ctx)
	res := &GenerationResult{Generation: gen, Output: out}
	if runErr != nil {
		s.recordFailure(wctx, gen, runErr)
		return res, runErr
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		return res, fmt.Errorf("generation: encode result: %w", err)
	}
	status := domain.JobStatusCompleted
	won, err := s.generations.UpdateInFlight(wctx, gen.ID, domain.GenerationPatch{Status: &status, ResultJSON: resultJSON})
	if err != nil {
		return res, &domain.Error{Code: domain.CodeStorageError, Message: "record result", RequestID: gen.RequestID, Err: err}
	}
	if !won {
		s.logger.Info().Str("generation_id", gen.ID).Str("request_id", gen.RequestID).Msg("generation already settled")
		return s.settled(wctx, gen)
	}
	gen.Status = status
	gen.ResultJSON = resultJSON

	persisted, err := s.persister.Persist(wctx, gen, out)
	if err != nil {
		s.recordFailure(wctx, gen, err)
		return res, err
	}
	res.Assets = persisted
	signed, err := s.sign(ctx, persisted)
	if err != nil {
		return res, err
	}
	res.Signed = signed
	s.logger.Info().Str("generation_id", gen.ID).Str("request_id", gen.RequestID).Int("assets", len(persisted)).Msg("generation finished")
	return res, nil
}

// settled returns the stored outcome of a generation another writer finished.
func (s *Service) settled(ctx context.Context, gen *domain.Generation) (*GenerationResult, error) {
	res, err := s.Get(ctx, gen.ID)
	if err != nil {
		return &GenerationResult{Generation: gen}, err
	}
	*gen = *res.Generation
	res.Generation = gen
	if gen.Status == domain.JobStatusCompleted {
		return res, nil
	}
	code := domain.ErrorCode(gen.ErrorCode)
	if code == "" {
		code = domain.CodeGenerationFailed
	}
	return res, &domain.Error{Code: code, Message: gen.ErrorMessage, RequestID: gen.RequestID, LastStatus: gen.Status}
}

// recordFailure stores the error on the record. A timeout keeps the last
// observed status because the provider job may still finish. A record that
// is no longer in flight is only overwritten when this writer completed it.
func (s *Service) recordFailure(ctx context.Context, gen *domain.Generation, runErr error) {
	owned := gen.Status == domain.JobStatusCompleted
	code := string(domain.CodeOf(runErr))
	msg := runErr.Error()
	if derr, ok := domain.AsError(runErr); ok && derr.Message != "" {
		msg = derr.Message
	}
	patch := domain.GenerationPatch{ErrorCode: &code, ErrorMessage: &msg}
	switch domain.CodeOf(runErr) {
	case domain.CodeGenerationTimeout, domain.CodeStorageError:
		if derr, ok := domain.AsError(runErr); ok && derr.LastStatus != "" {
			gen.Status = derr.LastStatus
			patch.Status = &gen.Status
		}
	case domain.CodeGenerationCancelled:
		gen.Status = domain.JobStatusCancelled
		patch.Status = &gen.Status
	default:
		gen.Status = domain.JobStatusFailed
		patch.Status = &gen.Status
	}
	if derr, ok := domain.AsError(runErr); ok && derr.RequestID != "" && gen.RequestID == "" {
		gen.RequestID = derr.RequestID
		patch.RequestID = &gen.RequestID
	}
	gen.ErrorCode = code
	gen.ErrorMessage = msg
	if owned {
		if err := s.generations.Update(ctx, gen.ID, patch); err != nil {
			s.logger.Error().Err(err).Str("generation_id", gen.ID).Msg("store generation failure")
		}
	} else {
		won, err := s.generations.UpdateInFlight(ctx, gen.ID, patch)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Str("generation_id", gen.ID).Msg("store generation failure")
		case !won:
			if stored, err := s.generations.GetByID(ctx, gen.ID); err == nil {
				*gen = *stored
			}
			s.logger.Info().Str("generation_id", gen.ID).Str("status", string(gen.Status)).Msg("generation already settled")
			return
		}
	}
	s.logger.Warn().Str("generation_id", gen.ID).Str("code", code).Str("status", string(gen.Status)).Msg("generation did not complete")
}

// Get loads a stored generation with freshly signed asset URLs.
func (s *Service) Get(ctx context.Context, id string) (*GenerationResult, error) {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &GenerationResult{Generation: gen}
	if len(gen.ResultJSON) > 0 {
		var out domain.Output
		if err := json.Unmarshal(gen.ResultJSON, &out); err != nil {
			s.logger.Warn().Err(err).Str("generation_id", id).Msg("stored result is not decodable")
		} else {
			res.Output = &out
		}
	}
	list, err := s.assets.ListByGeneration(ctx, id)
	if err != nil {
		return nil, &domain.Error{Code: domain.CodeStorageError, Message: "list assets", Err: err}
	}
	res.Assets = list
	if res.Signed, err = s.sign(ctx, list); err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel asks the provider to stop the job behind a stored generation.
// Terminal generations are returned unchanged.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Generation, error) {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen.Status.IsTerminal() {
		return gen, nil
	}
	if gen.RequestID == "" {
		return nil, &domain.Error{Code: domain.CodeCancelError, Message: "generation has not been submitted yet"}
	}
	if err := s.runner.Cancel(ctx, gen.ModelID, gen.RequestID); err != nil {
		return nil, err
	}
	status := domain.JobStatusCancelled
	code := string(domain.CodeGenerationCancelled)
	msg := "cancelled by user"
	wctx := context.WithoutCancel(ctx)
	won, err := s.generations.UpdateInFlight(wctx, gen.ID, domain.GenerationPatch{Status: &status, ErrorCode: &code, ErrorMessage: &msg})
	if err != nil {
		return nil, &domain.Error{Code: domain.CodeStorageError, Message: "record cancel", Err: err}
	}
	if !won {
		return s.generations.GetByID(wctx, gen.ID)
	}
	gen.Status, gen.ErrorCode, gen.ErrorMessage = status, code, msg
	s.logger.Info().Str("generation_id", gen.ID).Str("request_id", gen.RequestID).Msg("generation cancelled")
	return gen, nil
}

// Upload stores reference media with the provider and returns its URL.
func (s *Service) Upload(ctx context.Context, data []byte, fileName string) (string, error) {
	if s.uploader == nil {
		return "", domain.ErrMissingCredentials
	}
	return s.uploader.UploadFile(ctx, data, fileName)
}

// Reconcile re-polls one in-flight generation for at most timeout and
// stores the outcome when the job has ended. It reports whether the
// generation reached a terminal state. Cancelling ctx only stops the poll;
// the provider job and the stored record are left as they are.
func (s *Service) Reconcile(ctx context.Context, gen domain.Generation, timeout time.Duration) (bool, error) {
	if gen.RequestID == "" || gen.Status.IsTerminal() {
		return false, nil
	}
	out, err := s.runner.Resume(ctx, gen.ModelID, gen.RequestID, s.tracking(ctx, &gen, RunOptions{Timeout: timeout, DetachOnStop: true}))
	if errors.Is(err, ErrDetached) || domain.CodeOf(err) == domain.CodeGenerationTimeout {
		return false, nil
	}
	if err != nil && domain.CodeOf(err) == domain.CodeStatusError {
		return false, err
	}
	_, err = s.finish(ctx, &gen, out, err)
	if err != nil && domain.CodeOf(err).Category() == domain.CategoryInternal {
		return false, err
	}
	return true, nil
}

func (s *Service) sign(ctx context.Context, list []domain.Asset) ([]domain.SignedAccess, error) {
	if len(list) == 0 {
		return nil, nil
	}
	refs := make([]string, len(list))
	for i, a := range list {
		refs[i] = a.SourceRef
	}
	return s.signer.SignMany(ctx, refs, assets.SignOptions{TTL: s.signTTL})
}
