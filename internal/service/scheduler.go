package service

import (
	"context"
	"errors"
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/config"
	"github.com/bcnelson/homesync/internal/domain"
	"github.com/bcnelson/homesync/internal/metrics"
	"github.com/bcnelson/homesync/internal/resolver"
)

// Default loop delays.
const (
	DefaultMinInterval  = 60 * time.Second
	DefaultMaxInterval  = 600 * time.Second
	DefaultErrorBackoff = 600 * time.Second
)

// Scheduler drives the reconciler forever: resolve, reconcile, sleep.
// Exactly one cycle runs at a time.
type Scheduler struct {
	resolver   resolver.Resolver
	reconciler *Reconciler
	groupID    string
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	minDelay   time.Duration
	maxDelay   time.Duration
	errorDelay time.Duration

	// randInt64N returns a value in [0, n)
	randInt64N func(n int64) int64
	now        func() time.Time

	trigger chan struct{}

	mu                sync.Mutex
	last              *domain.CycleResult
	consecutiveErrors int
}

// NewScheduler creates a new Scheduler. Zero delays in cfg fall back to the
// defaults. m may be nil.
func NewScheduler(res resolver.Resolver, rec *Reconciler, groupID string, cfg config.ScheduleConfig, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		resolver:   res,
		reconciler: rec,
		groupID:    groupID,
		metrics:    m,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		minDelay:   cfg.MinInterval,
		maxDelay:   cfg.MaxInterval,
		errorDelay: cfg.ErrorBackoff,
		randInt64N: rand.Int63n,
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
	}
	if s.minDelay <= 0 {
		s.minDelay = DefaultMinInterval
	}
	if s.maxDelay <= 0 {
		s.maxDelay = DefaultMaxInterval
	}
	if s.maxDelay < s.minDelay {
		s.maxDelay = s.minDelay
	}
	if s.errorDelay <= 0 {
		s.errorDelay = DefaultErrorBackoff
	}
	return s
}

// Run loops until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("min_delay", s.minDelay).
		Dur("max_delay", s.maxDelay).
		Dur("error_delay", s.errorDelay).
		Msg("starting reconciliation loop")

	for {
		delay, _ := s.RunOnce(ctx)
		if ctx.Err() != nil {
			break
		}
		if err := s.sleep(ctx, delay); err != nil {
			break
		}
	}

	s.logger.Info().Msg("reconciliation loop stopped")
	return ctx.Err()
}

// RunOnce performs a single cycle and returns the delay before the next one.
// Errors are logged and recorded, never fatal.
func (s *Scheduler) RunOnce(ctx context.Context) (time.Duration, error) {
	result := domain.CycleResult{
		ID:        uuid.New().String(),
		GroupID:   s.groupID,
		StartedAt: s.now(),
	}
	logger := s.logger.With().Str("cycle_id", result.ID).Logger()

	outcome, addr, err := s.cycle(ctx)
	delay := s.NextDelay(err)

	result.FinishedAt = s.now()
	result.NextDelay = delay
	if addr.IsValid() {
		result.Address = addr.String()
	}

	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		result.Action = domain.ActionFailed
		result.Error = err.Error()
		logger.Info().Err(err).Msg("cycle interrupted")
	case err != nil:
		result.Action = domain.ActionFailed
		result.Error = err.Error()
		logger.Error().
			Err(err).
			Str("address", result.Address).
			Dur("next_delay", delay).
			Msg("reconciliation failed")
	default:
		result.Action = outcome.Action
		result.OldAddress = outcome.OldAddress
		event := logger.Info().
			Str("address", result.Address).
			Str("action", string(outcome.Action)).
			Dur("next_delay", delay)
		if outcome.Action == domain.ActionUpdated {
			event = event.Str("old_address", outcome.OldAddress)
		}
		event.Msg("reconciliation complete")
	}

	s.record(result)
	return delay, err
}

func (s *Scheduler) cycle(ctx context.Context) (*domain.Outcome, netip.Addr, error) {
	addr, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, netip.Addr{}, err
	}
	outcome, err := s.reconciler.Reconcile(ctx, s.groupID, addr)
	return outcome, addr, err
}

// NextDelay returns the fixed back-off after a failed cycle, otherwise a
// uniformly random delay in [minDelay, maxDelay].
func (s *Scheduler) NextDelay(err error) time.Duration {
	if err != nil {
		return s.errorDelay
	}
	span := int64(s.maxDelay - s.minDelay)
	return s.minDelay + time.Duration(s.randInt64N(span+1))
}

// Trigger asks for the next cycle to start now. Requests made while a cycle
// is running or a trigger is already pending are coalesced; it reports whether
// a new request was queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastResult returns the most recent cycle result, if any.
func (s *Scheduler) LastResult() (domain.CycleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.CycleResult{}, false
	}
	return *s.last, true
}

// GroupID returns the security group this scheduler reconciles.
func (s *Scheduler) GroupID() string {
	return s.groupID
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-s.trigger:
		s.logger.Info().Msg("cycle triggered early")
		return nil
	}
}

func (s *Scheduler) record(result domain.CycleResult) {
	s.mu.Lock()
	s.last = &result
	if result.Action == domain.ActionFailed {
		s.consecutiveErrors++
	} else {
		s.consecutiveErrors = 0
	}
	consecutive := s.consecutiveErrors
	s.mu.Unlock()

	if s.metrics == nil {
		return
	}
	s.metrics.CycleDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	s.metrics.CyclesTotal.WithLabelValues(string(result.Action)).Inc()
	s.metrics.NextDelay.Set(result.NextDelay.Seconds())
	s.metrics.ConsecutiveErrs.Set(float64(consecutive))
	if result.Action == domain.ActionUpdated {
		s.metrics.RuleUpdates.Inc()
	}
	if result.Action != domain.ActionFailed {
		s.metrics.LastSuccess.Set(float64(result.FinishedAt.Unix()))
	}
}
