package e133

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/reactor"
	"github.com/muurk/e133slp/internal/slp"
)

// DefaultRefreshTime is the longest interval between discovery polls, in
// seconds.
const DefaultRefreshTime uint16 = 60

// Reactor is the caller's event loop. reactor.SelectServer implements it.
type Reactor interface {
	AddSocket(sock reactor.ReadableSocket) error
	RemoveSocket(sock reactor.ReadableSocket) error
	RegisterSingleTimeout(delay time.Duration, fn reactor.Action) reactor.TimeoutID
	RemoveTimeout(id reactor.TimeoutID)
	Run()
	Terminate()
}

// RegistrationCallback receives the outcome of Register or Deregister.
type RegistrationCallback func(ok bool)

// DiscoveryCallback receives the outcome of a discovery poll and the
// endpoints found, without the service type prefix.
type DiscoveryCallback func(ok bool, endpoints []string)

// RenewalCallback receives the outcome of a timer driven re-registration.
type RenewalCallback func(endpoint string, ok bool)

// State is the lifecycle state of an SLPThread.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the protocol timing knobs. Zero fields take their defaults.
type Config struct {
	// ServiceName is the SLP service type registered and searched for
	ServiceName string

	// MinLifetime is the shortest lifetime sent to the agent, in seconds
	MinLifetime uint16

	// AgingTime is the server aging interval, in seconds
	AgingTime uint16

	// RefreshTime is the longest interval between discovery polls, in seconds
	RefreshTime uint16
}

// DefaultConfig returns the E1.33 defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName: slp.ServiceName,
		MinLifetime: slp.DefaultMinLifetime,
		AgingTime:   slp.DefaultAgingTime,
		RefreshTime: DefaultRefreshTime,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.MinLifetime == 0 {
		c.MinLifetime = d.MinLifetime
	}
	if c.AgingTime == 0 {
		c.AgingTime = d.AgingTime
	}
	if c.RefreshTime == 0 {
		c.RefreshTime = d.RefreshTime
	}
	return c
}

// Option configures an SLPThread.
type Option func(*SLPThread)

// WithClock sets the time source of the worker reactor.
func WithClock(c clock.Clock) Option {
	return func(t *SLPThread) {
		t.clock = c
	}
}

// WithMetrics records activity on m.
func WithMetrics(m *Metrics) Option {
	return func(t *SLPThread) {
		t.metrics = m
	}
}

// WithRenewalHook reports every re-registration outcome to fn on the
// caller's reactor.
func WithRenewalHook(fn RenewalCallback) Option {
	return func(t *SLPThread) {
		t.onRenewal = fn
	}
}

// SLPThread runs SLP agent calls on a dedicated goroutine and delivers their
// results to the caller's reactor.
type SLPThread struct {
	caller      Reactor
	agent       slp.Agent
	onDiscovery DiscoveryCallback
	onRenewal   RenewalCallback
	cfg         Config
	clock       clock.Clock
	metrics     *Metrics

	// incoming carries requests to the worker, outgoing carries
	// completions back to the caller.
	incoming *reactor.ActionQueue
	outgoing *reactor.ActionQueue

	mu     sync.Mutex
	state  State
	worker *reactor.SelectServer
	done   chan struct{}

	// Owned by the worker goroutine.
	registrations    map[string]*registration
	discoveryTimeout reactor.TimeoutID
}

// NewSLPThread creates a thread that delivers completions on ss. It does not
// open anything; call Init and then Start. onDiscovery may be nil if
// discovery is never triggered.
func NewSLPThread(ss Reactor, agent slp.Agent, onDiscovery DiscoveryCallback, cfg Config, opts ...Option) *SLPThread {
	t := &SLPThread{
		caller:           ss,
		agent:            agent,
		onDiscovery:      onDiscovery,
		cfg:              cfg.withDefaults(),
		clock:            clock.New(),
		incoming:         reactor.NewActionQueue(reactor.NewLoopbackSocket()),
		outgoing:         reactor.NewActionQueue(reactor.NewLoopbackSocket()),
		registrations:    make(map[string]*registration),
		discoveryTimeout: reactor.InvalidTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.incoming.Socket().SetOnData(func() { t.incoming.DrainAndRun() })
	t.outgoing.Socket().SetOnData(func() { t.outgoing.DrainAndRun() })
	return t
}

// Config returns the effective configuration.
func (t *SLPThread) Config() Config {
	return t.cfg
}

// State returns the current lifecycle state.
func (t *SLPThread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Init opens both loopback sockets and the agent. On failure everything
// opened so far is released and false is returned. Calling Init again after
// a successful Init is a no-op.
func (t *SLPThread) Init() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateUninitialized {
		return true
	}

	worker, err := reactor.NewSelectServer(reactor.WithClock(t.clock))
	if err != nil {
		logging.Error("Failed to create SLP worker reactor", zap.Error(err))
		return false
	}

	var opened []func() error
	unwind := func(msg string, err error) bool {
		errs := err
		for i := len(opened) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, opened[i]())
		}
		errs = multierr.Append(errs, worker.Close())
		logging.Error(msg, zap.Error(errs))
		return false
	}

	incoming := t.incoming.Socket()
	if err := incoming.Init(); err != nil {
		return unwind("Failed to open incoming SLP socket", err)
	}
	opened = append(opened, incoming.Close)

	outgoing := t.outgoing.Socket()
	if err := outgoing.Init(); err != nil {
		return unwind("Failed to open outgoing SLP socket", err)
	}
	opened = append(opened, outgoing.Close)

	if err := t.agent.Open(); err != nil {
		return unwind("Failed to open SLP agent", err)
	}
	opened = append(opened, t.agent.Close)

	if err := worker.AddSocket(incoming); err != nil {
		return unwind("Failed to watch incoming SLP socket", err)
	}

	if err := t.caller.AddSocket(outgoing); err != nil {
		return unwind("Failed to watch outgoing SLP socket", err)
	}

	t.worker = worker
	t.registrations = make(map[string]*registration)
	t.discoveryTimeout = reactor.InvalidTimeout
	t.state = StateInitialized

	// Requests queued before Init lost their wake-up with the old socket
	if t.incoming.Len() > 0 {
		_ = incoming.Wake()
	}

	logging.Debug("SLP thread initialized",
		zap.String("service", t.cfg.ServiceName),
		zap.Uint16("aging_time", t.cfg.AgingTime),
		zap.Uint16("refresh_time", t.cfg.RefreshTime),
	)
	return true
}

// Start runs the worker reactor on a new goroutine. It fails unless the
// thread is initialized and has not been started.
func (t *SLPThread) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateInitialized {
		logging.Warn("Cannot start SLP thread", zap.Stringer("state", t.state))
		return false
	}

	worker := t.worker
	done := make(chan struct{})
	t.done = done
	t.state = StateRunning

	go func() {
		defer close(done)
		worker.Run()
	}()
	return true
}

// Stop terminates the worker reactor and waits for its goroutine to exit.
// An in-flight agent call is allowed to finish. Returns false if the thread
// is not running.
func (t *SLPThread) Stop() bool {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return false
	}
	t.state = StateStopping
	worker, done := t.worker, t.done
	t.mu.Unlock()

	worker.Terminate()
	// Wake the worker so an idle loop observes termination immediately
	if err := t.incoming.Socket().Wake(); err != nil {
		logging.Debug("Failed to wake SLP worker", zap.Error(err))
	}
	<-done

	t.mu.Lock()
	// Cleanup may already have reset the thread while we waited
	if t.state == StateStopping {
		t.state = StateStopped
	}
	t.mu.Unlock()
	return true
}

// Cleanup stops the worker if needed, removes both sockets from their
// reactors, closes them and closes the agent. If another goroutine is in
// Stop, Cleanup waits for the worker to exit first. It is safe to call more
// than once.
func (t *SLPThread) Cleanup() {
	if t.State() == StateRunning {
		t.Stop()
	}
	t.waitForWorker()

	t.mu.Lock()
	defer t.mu.Unlock()

	var errs error
	if incoming := t.incoming.Socket(); incoming.IsOpen() {
		if t.worker != nil {
			errs = multierr.Append(errs, t.worker.RemoveSocket(incoming))
		}
		errs = multierr.Append(errs, incoming.Close())
	}

	if outgoing := t.outgoing.Socket(); outgoing.IsOpen() {
		errs = multierr.Append(errs, t.caller.RemoveSocket(outgoing))
		errs = multierr.Append(errs, outgoing.Close())
	}

	if t.state != StateUninitialized {
		errs = multierr.Append(errs, t.agent.Close())
	}

	if t.worker != nil {
		errs = multierr.Append(errs, t.worker.Close())
		t.worker = nil
	}

	t.registrations = make(map[string]*registration)
	t.discoveryTimeout = reactor.InvalidTimeout
	t.state = StateUninitialized

	if errs != nil {
		logging.Warn("SLP thread cleanup reported errors", zap.Error(errs))
	}
}

// waitForWorker blocks until a worker being stopped elsewhere has exited.
// An in-flight agent call is never interrupted.
func (t *SLPThread) waitForWorker() {
	t.mu.Lock()
	if t.state != StateStopping {
		t.mu.Unlock()
		return
	}
	done := t.done
	t.mu.Unlock()
	<-done
}

// request hands fn to the worker goroutine.
func (t *SLPThread) request(fn reactor.Action) {
	if err := t.incoming.Enqueue(fn); err != nil {
		// Stays queued; Init wakes the worker for it
		logging.Debug("SLP request queued without wake-up", zap.Error(err))
	}
}

// complete hands fn back to the caller's reactor.
func (t *SLPThread) complete(fn reactor.Action) {
	if err := t.outgoing.Enqueue(fn); err != nil {
		logging.Warn("Failed to wake caller for SLP completion", zap.Error(err))
	}
}

// seconds converts a whole number of seconds to a timer delay.
func seconds(s int) time.Duration {
	if s < 0 {
		s = 0
	}
	return time.Duration(s) * time.Second
}
