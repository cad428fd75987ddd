package assets

import (
	"context"
	"sync"
	"time"

	"genstudio/internal/domain"
)

const defaultRetryBackoff = 5 * time.Second

// Refresher keeps signed URLs for long-lived consumers current.
type Refresher struct {
	signer       *Signer
	retryBackoff time.Duration
}

// NewRefresher returns a refresher re-signing through signer. A zero
// retryBackoff selects a default.
func NewRefresher(signer *Signer, retryBackoff time.Duration) *Refresher {
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &Refresher{signer: signer, retryBackoff: retryBackoff}
}

// Watch signs ref in the background, calls onUpdate with the result and
// again each time the URL is re-signed at its RefreshAt. A failed refresh
// keeps the previous URL in place and retries after the backoff. The
// watch ends when ctx is done or stop is called; stop waits for the
// background goroutine and may be called more than once.
func (r *Refresher) Watch(ctx context.Context, ref string, opts SignOptions, onUpdate func(domain.SignedAccess)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.loop(ctx, ref, opts, onUpdate)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (r *Refresher) loop(ctx context.Context, ref string, opts SignOptions, onUpdate func(domain.SignedAccess)) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Cached entries past RefreshAt are ignored by Sign, so this always
		// yields a URL that is fresh enough.
		access, err := r.signer.Sign(ctx, ref, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.signer.logger.Warn().Err(err).Str("ref", ref).Msg("signed url refresh failed, keeping previous url")
			timer.Reset(r.retryBackoff)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if onUpdate != nil {
			onUpdate(access)
		}
		if !access.Expiring() {
			return
		}
		wait := access.RefreshAt.Sub(r.signer.now())
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}
