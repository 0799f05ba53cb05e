package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// Metrics receives one observation per call. *observability.Prom satisfies it.
type Metrics interface {
	ObserveGateway(op, result string, d time.Duration)
	SetBreakerOpen(open bool)
}

// Protected wraps a Gateway with a per-call timeout and a circuit breaker.
type Protected struct {
	inner   Gateway
	cfg     ProtectedConfig
	metrics Metrics
	now     func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtected(inner Gateway, cfg ProtectedConfig, metrics Metrics) *Protected {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Protected{
		inner:   inner,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		state:   stateClosed,
	}
}

func (p *Protected) Query(ctx context.Context, payload any) (json.RawMessage, error) {
	return p.call(ctx, "query", func(ctx context.Context) (json.RawMessage, error) {
		return p.inner.Query(ctx, payload)
	})
}

func (p *Protected) Traces(ctx context.Context) (json.RawMessage, error) {
	return p.call(ctx, "traces", p.inner.Traces)
}

func (p *Protected) call(ctx context.Context, op string, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	start := p.now()

	// fail-fast gate
	if !p.allowRequest() {
		p.observe(op, "circuit_open", start)
		return nil, ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := fn(callCtx)

	p.afterRequest(ctx, err)

	result := "ok"
	if err != nil {
		result = "error"
	}
	p.observe(op, result, start)

	return out, err
}

func (p *Protected) observe(op, result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveGateway(op, result, p.now().Sub(start))
	}
}

// State reports the breaker state, mainly for readiness output and tests.
func (p *Protected) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.state)
}

func (p *Protected) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateClosed:
		return true
	case stateOpen:
		if p.now().Sub(p.openedAt) >= p.cfg.Cooldown {
			p.state = stateHalfOpen
			p.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

// Caller cancellation and 4xx answers do not count against the gateway.
func neutral(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode < 500
}

func (p *Protected) afterRequest(parent context.Context, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	if err != nil && neutral(parent, err) {
		if p.state == stateHalfOpen && p.halfOpenInFlight == 0 {
			// trial was inconclusive; let the next call try again
			p.state = stateOpen
		}
		return
	}

	if err == nil {
		p.consecutiveFailures = 0
		p.setState(stateClosed)
		return
	}

	p.consecutiveFailures++

	// a failed trial call reopens immediately
	if p.state == stateHalfOpen || p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.setState(stateOpen)
		p.openedAt = p.now()
	}
}

func (p *Protected) setState(s breakerState) {
	p.state = s
	if p.metrics != nil {
		p.metrics.SetBreakerOpen(s != stateClosed)
	}
}
