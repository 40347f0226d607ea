package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/metrics"
	"github/chapool/go-wallet-engine/internal/util"
	"github/chapool/go-wallet-engine/internal/wallet/chain"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// RetryPolicy is an immutable description of how transient provider failures are retried.
type RetryPolicy struct {
	// MaxAttempts counts the first call; 1 disables retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// Jitter is the randomization factor in [0,1] applied to every delay.
	Jitter float64
}

// DefaultRetryPolicy returns 4 attempts with 200ms exponential backoff capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

// Validate rejects policies the backoff cannot run.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return errors.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0 || p.MaxDelay < 0:
		return errors.New("delays must not be negative")
	case p.Multiplier < 1:
		return errors.Errorf("multiplier must be >= 1, got %v", p.Multiplier)
	case p.Jitter < 0 || p.Jitter > 1:
		return errors.Errorf("jitter must be within [0,1], got %v", p.Jitter)
	}
	return nil
}

// Delays returns the un-jittered wait before each retry.
func (p RetryPolicy) Delays() []time.Duration {
	out := make([]time.Duration, 0, max(p.MaxAttempts-1, 0))
	b := p.exponential()
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	retries := uint64(0)
	if p.MaxAttempts > 1 {
		retries = uint64(p.MaxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(p.exponential(), retries), ctx)
}

// caller runs provider operations under the retry policy, a per-attempt timeout and metrics.
type caller struct {
	chain   chain.Kind
	policy  RetryPolicy
	timeout time.Duration
	metrics *metrics.Provider
}

func newCaller(kind chain.Kind, opts Options) (*caller, error) {
	if err := opts.Retry.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid retry policy")
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &caller{chain: kind, policy: opts.Retry, timeout: timeout, metrics: opts.Metrics}, nil
}

// do invokes fn until it succeeds, fails terminally or the policy is exhausted.
// fn receives a context bounded by the per-call timeout and the 1-based attempt number.
// Returned errors are always classified *werrors.Error values.
func (c *caller) do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	log := util.LogFromContext(ctx).With().
		Str("component", "provider").
		Str("chain", c.chain.String()).
		Str("op", op).
		Logger()

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		err := fn(attemptCtx, attempt)
		took := time.Since(start)
		if err == nil {
			c.metrics.Observe(c.chain.String(), op, metrics.OutcomeSuccess, took)
			return nil
		}

		classified := Classify(op, err)
		if werrors.IsRetryable(classified) && ctx.Err() == nil {
			c.metrics.Observe(c.chain.String(), op, metrics.OutcomeRetryable, took)
			return classified
		}

		c.metrics.Observe(c.chain.String(), op, metrics.OutcomeTerminal, took)
		return backoff.Permanent(classified)
	}

	notify := func(err error, wait time.Duration) {
		c.metrics.Retry(c.chain.String(), op)
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("Provider call failed, retrying")
	}

	err := backoff.RetryNotify(operation, c.policy.backOff(ctx), notify)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && werrors.KindOf(err) == werrors.KindUnknown {
		return werrors.Wrapf(werrors.KindTimeout, ctxErr, "%s aborted", op)
	}
	if werrors.KindOf(err) == werrors.KindUnknown {
		err = Classify(op, err)
	}

	log.Debug().Err(err).Int("attempts", attempt).Str("kind", string(werrors.KindOf(err))).Msg("Provider call failed")

	return err
}
