package e133

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/slp"
)

// recorder collects registration outcomes in delivery order.
type recorder struct {
	results []bool
}

func (r *recorder) callback() RegistrationCallback {
	return func(ok bool) {
		r.results = append(r.results, ok)
	}
}

func TestRegister_RaisesLifetimeToTwiceAgingTime(t *testing.T) {
	tests := []struct {
		name      string
		agingTime uint16
		requested uint16
		want      uint16
	}{
		{"below minimum", 60, 30, 120},
		{"zero", 60, 0, 120},
		{"exactly twice aging time", 60, 120, 120},
		{"above minimum", 60, 300, 300},
		{"short aging time", 5, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{AgingTime: tt.agingTime}, nil)
			rec := &recorder{}

			h.thread.Register("foo", tt.requested, rec.callback())
			h.runWorker()
			h.runCaller()

			lifetime, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
			require.True(t, ok)
			assert.Equal(t, tt.want, lifetime)
			assert.Equal(t, []bool{true}, rec.results)
		})
	}
}

func TestRegister_WarnsOnlyWhenRaisingLifetime(t *testing.T) {
	tests := []struct {
		name      string
		requested uint16
		warned    bool
	}{
		{"below twice aging time", 9, true},
		{"exactly twice aging time", 10, false},
		{"above twice aging time", 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			logging.SetLogger(zap.New(core))
			defer logging.SetLogger(nil)

			h := newHarness(t, Config{AgingTime: 5}, nil)
			h.thread.Register("foo", tt.requested, nil)

			warnings := logs.FilterMessageSnippet("twice the aging time").Len()
			assert.Equal(t, tt.warned, warnings == 1, "warnings logged: %d", warnings)
		})
	}
}

func TestRegister_RaisesLifetimeToAgentMinimum(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)
	h.agent.SetMinRefreshInterval(300)

	h.thread.Register("foo", 10, nil)
	h.runWorker()

	lifetime, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
	require.True(t, ok)
	assert.Equal(t, uint16(300), lifetime)
}

func TestRegister_RaisesLifetimeToMinLifetime(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 1, MinLifetime: 5}, nil)

	// 2 x aging time is only 2, so MinLifetime wins
	h.thread.Register("foo", 1, nil)
	h.runWorker()

	lifetime, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
	require.True(t, ok)
	assert.Equal(t, uint16(5), lifetime)
}

func TestRegister_SameLifetimeIsNoop(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)
	rec := &recorder{}

	h.thread.Register("foo", 10, rec.callback())
	h.thread.Register("foo", 10, rec.callback())
	h.runWorker()
	h.runCaller()

	assert.Equal(t, 1, h.agent.Calls("register"))
	assert.Equal(t, []bool{true, true}, rec.results)
	assert.Equal(t, 1, h.thread.worker.PendingTimeouts())
}

func TestRegister_NewLifetimeReplacesRenewal(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)
	rec := &recorder{}

	h.thread.Register("foo", 10, rec.callback())
	h.runWorker()
	h.thread.Register("foo", 20, rec.callback())
	h.runWorker()
	h.runCaller()

	assert.Equal(t, 2, h.agent.Calls("register"))
	assert.Equal(t, []bool{true, true}, rec.results)
	assert.Equal(t, 1, h.thread.worker.PendingTimeouts())
	assert.Equal(t, uint16(20), h.thread.registrations["foo"].lifetime)

	// The 4s renewal for the old lifetime is gone; the new one is at 14s
	h.advance(t, 13*time.Second)
	assert.Equal(t, 2, h.agent.Calls("register"))
	h.advance(t, time.Second)
	assert.Equal(t, 3, h.agent.Calls("register"))
}

func TestRegister_RenewsBeforeExpiry(t *testing.T) {
	var renewals []bool
	h := newHarness(t, Config{AgingTime: 5}, nil, WithRenewalHook(func(endpoint string, ok bool) {
		assert.Equal(t, "foo", endpoint)
		renewals = append(renewals, ok)
	}))

	h.thread.Register("foo", 10, nil)
	h.runWorker()
	require.Equal(t, 1, h.agent.Calls("register"))

	// Renewal is due at lifetime - aging time - 1 = 4s
	h.advance(t, 3999*time.Millisecond)
	assert.Equal(t, 1, h.agent.Calls("register"))

	h.advance(t, time.Millisecond)
	assert.Equal(t, 2, h.agent.Calls("register"))

	lifetime, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
	require.True(t, ok)
	assert.Equal(t, uint16(10), lifetime)
	assert.Equal(t, 1, h.thread.worker.PendingTimeouts())

	h.advance(t, 4*time.Second)
	assert.Equal(t, 3, h.agent.Calls("register"))

	h.runCaller()
	assert.Equal(t, []bool{true, true}, renewals)
}

func TestRegister_RenewalFailureKeepsRetrying(t *testing.T) {
	var renewals []bool
	h := newHarness(t, Config{AgingTime: 5}, nil, WithRenewalHook(func(_ string, ok bool) {
		renewals = append(renewals, ok)
	}))

	h.thread.Register("foo", 10, nil)
	h.runWorker()

	h.agent.SetFailure("register", slp.NetworkTimedOut)
	h.advance(t, 4*time.Second)
	h.agent.SetFailure("register", nil)
	h.advance(t, 4*time.Second)

	h.runCaller()
	assert.Equal(t, []bool{false, true}, renewals)
	assert.Equal(t, 3, h.agent.Calls("register"))
}

func TestRegister_FailureIsReported(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)
	h.agent.SetFailure("register", slp.NetworkError)
	rec := &recorder{}

	h.thread.Register("foo", 10, rec.callback())
	h.runWorker()
	h.runCaller()

	assert.Equal(t, []bool{false}, rec.results)

	// The endpoint stays tracked so the renewal can recover it
	assert.Contains(t, h.thread.registrations, "foo")
	assert.Equal(t, 1, h.thread.worker.PendingTimeouts())

	h.agent.SetFailure("register", nil)
	h.advance(t, 4*time.Second)
	_, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
	assert.True(t, ok)
}

func TestRegister_UsesConfiguredServiceName(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5, ServiceName: "service:rdmnet-broker"}, nil)

	h.thread.Register("10.0.0.1:8888", 10, nil)
	h.runWorker()

	_, ok := h.agent.Lifetime("service:rdmnet-broker://10.0.0.1:8888")
	assert.True(t, ok)
}

func TestDeregister_CancelsRenewal(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)
	rec := &recorder{}

	h.thread.Register("foo", 10, rec.callback())
	h.runWorker()
	require.Equal(t, 1, h.thread.worker.PendingTimeouts())

	h.thread.Deregister("foo", rec.callback())
	h.runWorker()
	h.runCaller()

	assert.Equal(t, []bool{true, true}, rec.results)
	assert.Equal(t, 0, h.thread.worker.PendingTimeouts())
	assert.NotContains(t, h.thread.registrations, "foo")
	assert.Equal(t, 1, h.agent.Calls("deregister"))

	_, ok := h.agent.Lifetime(slp.ServiceURL("foo"))
	assert.False(t, ok)

	h.advance(t, time.Minute)
	assert.Equal(t, 1, h.agent.Calls("register"))
}

func TestDeregister_UnknownEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantOK bool
	}{
		{"agent succeeds", nil, true},
		{"agent fails", slp.InvalidRegistration, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			h.agent.SetFailure("deregister", tt.err)
			rec := &recorder{}

			h.thread.Deregister("never-registered", rec.callback())
			h.runWorker()
			h.runCaller()

			assert.Equal(t, 1, h.agent.Calls("deregister"))
			assert.Equal(t, []bool{tt.wantOK}, rec.results)
		})
	}
}

func TestRenewalDelay(t *testing.T) {
	tests := []struct {
		agingTime uint16
		lifetime  uint16
		want      time.Duration
	}{
		{5, 10, 4 * time.Second},
		{60, 120, 59 * time.Second},
		{60, 300, 239 * time.Second},
		{60, 30, 0},
		{60, 61, 0},
	}

	for _, tt := range tests {
		thread := NewSLPThread(&fakeReactor{}, slp.NewMemoryAgent(), nil, Config{AgingTime: tt.agingTime})
		if got := thread.renewalDelay(tt.lifetime); got != tt.want {
			t.Errorf("renewalDelay(%d) with aging %d = %v, want %v", tt.lifetime, tt.agingTime, got, tt.want)
		}
	}
}

func TestRenewalTriggered_IgnoresRemovedEndpoint(t *testing.T) {
	h := newHarness(t, Config{AgingTime: 5}, nil)

	h.thread.renewalTriggered("gone")
	assert.Equal(t, 0, h.agent.Calls("register"))
	assert.Equal(t, 0, h.thread.worker.PendingTimeouts())
}
