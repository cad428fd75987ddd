package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
)

const (
	DefaultReconcileSchedule = "@every 1m"
	defaultReconcileGrace    = 2 * time.Minute
	defaultReconcileTimeout  = 10 * time.Second
	defaultReconcileBatch    = 50
	defaultReconcileWorkers  = 4
)

// Reconcilable is the part of Service the reconciler drives.
type Reconcilable interface {
	Reconcile(ctx context.Context, gen domain.Generation, timeout time.Duration) (bool, error)
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Generations domain.GenerationRepository
	Service     Reconcilable
	Schedule    string
	// Grace is how long a generation must sit untouched before the
	// reconciler takes over from whoever submitted it.
	Grace     time.Duration
	Timeout   time.Duration
	BatchSize int
	Workers   int
	Logger    *infra.Logger
}

// Reconciler periodically re-polls generations whose submitter went away,
// for example after a timeout or a process restart.
type Reconciler struct {
	gens     domain.GenerationRepository
	svc      Reconcilable
	schedule string
	grace    time.Duration
	timeout  time.Duration
	batch    int
	workers  int
	logger   *infra.Logger
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler applies defaults and validates the schedule.
func NewReconciler(opts ReconcilerOptions) (*Reconciler, error) {
	if opts.Generations == nil || opts.Service == nil {
		return nil, errors.New("generation: reconciler needs a repository and a service")
	}
	r := &Reconciler{
		gens:     opts.Generations,
		svc:      opts.Service,
		schedule: opts.Schedule,
		grace:    opts.Grace,
		timeout:  opts.Timeout,
		batch:    opts.BatchSize,
		workers:  opts.Workers,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if r.schedule == "" {
		r.schedule = DefaultReconcileSchedule
	}
	if r.grace <= 0 {
		r.grace = defaultReconcileGrace
	}
	if r.timeout <= 0 {
		r.timeout = defaultReconcileTimeout
	}
	if r.batch <= 0 {
		r.batch = defaultReconcileBatch
	}
	if r.workers <= 0 {
		r.workers = defaultReconcileWorkers
	}
	if r.logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		r.logger = &l
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return nil, err
	}
	return r, nil
}

// Start schedules passes until ctx is done or Stop is called. Overlapping
// ticks are skipped.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("generation: reconciler already started")
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("reconcile pass failed")
		}
	}); err != nil {
		return err
	}
	r.cron = c
	c.Start()
	r.logger.Info().Str("schedule", r.schedule).Msg("reconciler started")
	return nil
}

// Stop halts scheduling and waits for a running pass to end.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info().Msg("reconciler stopped")
}

// RunOnce performs a single pass and returns how many generations reached a
// terminal state.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	gens, err := r.gens.ListInFlight(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}
	if len(gens) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		finished int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, gen := range gens {
		gen := gen
		g.Go(func() error {
			done, err := r.svc.Reconcile(gctx, gen, r.timeout)
			switch {
			case err != nil:
				metrics.RecordReconcile("error")
				r.logger.Warn().Err(err).Str("generation_id", gen.ID).Str("request_id", gen.RequestID).Msg("reconcile failed")
			case done:
				metrics.RecordReconcile("finished")
				mu.Lock()
				finished++
				mu.Unlock()
			default:
				metrics.RecordReconcile("pending")
			}
			return nil
		})
	}
	_ = g.Wait()
	r.logger.Debug().Int("visited", len(gens)).Int("finished", finished).Msg("reconcile pass done")
	return finished, nil
}
