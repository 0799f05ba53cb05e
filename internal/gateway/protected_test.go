package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (f *fakeGateway) Query(ctx context.Context, payload any) (json.RawMessage, error) {
	return f.Traces(ctx)
}

func (f *fakeGateway) Traces(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	err, block := f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`[]`), nil
}

func (f *fakeGateway) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeMetrics struct {
	results []string
	open    bool
}

func (m *fakeMetrics) ObserveGateway(op, result string, d time.Duration) {
	m.results = append(m.results, op+":"+result)
}

func (m *fakeMetrics) SetBreakerOpen(open bool) { m.open = open }

func TestProtected_OpensAfterThresholdAndRecovers(t *testing.T) {
	inner := &fakeGateway{err: errors.New("connection refused")}
	metrics := &fakeMetrics{}
	p := NewProtected(inner, ProtectedConfig{FailureThreshold: 2, Cooldown: time.Minute}, metrics)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := p.Traces(ctx)
	require.Error(t, err)
	require.Equal(t, "closed", p.State())

	_, err = p.Traces(ctx)
	require.Error(t, err)
	require.Equal(t, "open", p.State())
	require.True(t, metrics.open)

	_, err = p.Query(ctx, nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 2, inner.calls)

	// cooldown elapsed, trial call succeeds
	now = now.Add(time.Minute)
	inner.set(nil)

	out, err := p.Traces(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(out))
	require.Equal(t, "closed", p.State())
	require.False(t, metrics.open)

	require.Equal(t, []string{"traces:error", "traces:error", "query:circuit_open", "traces:ok"}, metrics.results)
}

func TestProtected_FailedTrialReopens(t *testing.T) {
	inner := &fakeGateway{err: errors.New("boom")}
	p := NewProtected(inner, ProtectedConfig{FailureThreshold: 1, Cooldown: time.Second}, nil)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, _ = p.Traces(context.Background())
	require.Equal(t, "open", p.State())

	now = now.Add(time.Second)
	_, err := p.Traces(context.Background())
	require.EqualError(t, err, "boom")
	require.Equal(t, "open", p.State())

	_, err = p.Traces(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestProtected_ClientErrorsDoNotTrip(t *testing.T) {
	inner := &fakeGateway{err: &StatusError{StatusCode: 400, Body: "bad"}}
	p := NewProtected(inner, ProtectedConfig{FailureThreshold: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := p.Traces(context.Background())
		var se *StatusError
		require.ErrorAs(t, err, &se)
	}
	require.Equal(t, "closed", p.State())
}

func TestProtected_TimeoutCountsAsFailure(t *testing.T) {
	inner := &fakeGateway{block: true}
	p := NewProtected(inner, ProtectedConfig{Timeout: 10 * time.Millisecond, FailureThreshold: 1}, nil)

	_, err := p.Traces(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "open", p.State())
}
