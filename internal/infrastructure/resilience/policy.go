package resilience

import "time"

// Operation names used by the remote callers. They key breakers, retry
// overrides and the retry metric.
const (
	OpOllamaChat  = "ollama.chat"
	OpOpenAIChat  = "openai.chat"
	OpNATSPublish = "nats.publish"
)

// RetryPolicy bounds the attempts made for one operation.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// AttemptTimeout bounds each attempt; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration
}

// Backoff returns the wait after failed attempt n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < n && wait < p.MaxBackoff; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	if p.AttemptTimeout < 0 {
		p.AttemptTimeout = 0
	}
	return p
}

// BreakerPolicy trips an operation's circuit once FailureRatio of at least
// MinRequests calls in a window have failed.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (p BreakerPolicy) normalize(def BreakerPolicy) BreakerPolicy {
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = def.OpenTimeout
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	// Operations replaces Retry for the named operations. Unset fields fall
	// back to Retry.
	Operations map[string]RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// WithOperation returns a copy of c with policy applied to operation.
func (c Config) WithOperation(operation string, policy RetryPolicy) Config {
	ops := make(map[string]RetryPolicy, len(c.Operations)+1)
	for name, p := range c.Operations {
		ops[name] = p
	}
	ops[operation] = policy
	c.Operations = ops
	return c
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := Config{
		Retry:   c.Retry.normalize(def.Retry),
		Breaker: c.Breaker.normalize(def.Breaker),
	}
	if len(c.Operations) > 0 {
		out.Operations = make(map[string]RetryPolicy, len(c.Operations))
		for name, p := range c.Operations {
			out.Operations[name] = p.normalize(out.Retry)
		}
	}
	return out
}

// retryFor returns the policy for operation. c must be normalized.
func (c Config) retryFor(operation string) RetryPolicy {
	if p, ok := c.Operations[operation]; ok {
		return p
	}
	return c.Retry
}
