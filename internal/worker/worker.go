// Package worker dispatches entry analyses with a bounded concurrency,
// a soft time limit per attempt and exponential-backoff retries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/metalagman/entrybrain/internal/config"
)

// Handler analyzes one entry. Analyze returns an error only when the
// attempt should be retried.
type Handler interface {
	Analyze(ctx context.Context, id int64) (string, error)
	Exhausted(ctx context.Context, id int64, cause error) string
}

// Source lists entries awaiting analysis.
type Source interface {
	PendingEntryIDs(ctx context.Context, limit int) ([]int64, error)
}

// Pool runs analyses under the configured task policy.
type Pool struct {
	h   Handler
	cfg config.WorkerConfig
}

// New creates a pool.
func New(h Handler, cfg config.WorkerConfig) *Pool {
	return &Pool{h: h, cfg: cfg}
}

// Process analyzes id, retrying failed attempts with exponential backoff and
// handing the entry to Handler.Exhausted once the retries run out. The error
// is non-nil only when ctx ends first.
func (p *Pool) Process(ctx context.Context, id int64) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, p.cfg.SoftTimeLimit)
		defer cancel()
		return p.h.Analyze(actx, id)
	}

	status, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backoff()),
		backoff.WithMaxTries(uint(p.cfg.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).
				Int64("entry_id", id).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("analysis attempt failed")
		}),
	)
	if err == nil {
		return status, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("process entry %d: %w", id, ctx.Err())
	}
	return p.h.Exhausted(ctx, id, err), nil
}

func (p *Pool) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BackoffInitial
	b.MaxInterval = p.cfg.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

// Run processes ids with at most cfg.Concurrency analyses in flight and
// returns their status lines in input order.
func (p *Pool) Run(ctx context.Context, ids []int64) ([]string, error) {
	out := make([]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Concurrency))
	for i, id := range ids {
		g.Go(func() error {
			status, err := p.Process(gctx, id)
			if err != nil {
				return err
			}
			out[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// Poll repeatedly analyzes pending entries from src until ctx ends.
func (p *Pool) Poll(ctx context.Context, src Source) error {
	log.Info().
		Int("concurrency", p.cfg.Concurrency).
		Dur("poll_interval", p.cfg.PollInterval).
		Msg("worker started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return nil
		case <-timer.C:
		}

		if err := p.drain(ctx, src); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Error().Err(err).Msg("poll pending entries")
		}
		timer.Reset(p.cfg.PollInterval)
	}
}

func (p *Pool) drain(ctx context.Context, src Source) error {
	ids, err := src.PendingEntryIDs(ctx, p.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	log.Debug().Int("entries", len(ids)).Msg("dispatching pending entries")
	statuses, err := p.Run(ctx, ids)
	for _, s := range statuses {
		if s != "" {
			log.Info().Msg(s)
		}
	}
	return err
}
