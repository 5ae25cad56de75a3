package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/e133slp/internal/config"
	"github.com/muurk/e133slp/internal/e133"
	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/reactor"
	"github.com/muurk/e133slp/internal/slp"
)

// DefaultShutdownTimeout bounds deregistration and metrics shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Registration actions reported to event observers.
const (
	ActionRegister   = "register"
	ActionRenew      = "renew"
	ActionDeregister = "deregister"
)

var (
	// ErrAlreadyRun is returned when Run is called more than once.
	ErrAlreadyRun = errors.New("daemon has already been run")

	// ErrThreadInit is returned when the SLP thread cannot be initialized.
	ErrThreadInit = errors.New("failed to initialize SLP thread")

	// ErrThreadStart is returned when the SLP worker cannot be started.
	ErrThreadStart = errors.New("failed to start SLP thread")

	errCallerStopped = errors.New("caller reactor stopped unexpectedly")
)

// Event is a registration outcome delivered to an event observer.
type Event struct {
	Action   string
	Endpoint string
	OK       bool
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithAgent overrides the agent selected by the configured backend.
func WithAgent(agent slp.Agent) Option {
	return func(d *Daemon) {
		d.agent = agent
	}
}

// WithAdvertisements replaces the endpoints kept registered. An empty list
// runs discovery only.
func WithAdvertisements(ads []config.Advertisement) Option {
	return func(d *Daemon) {
		d.advertisements = ads
	}
}

// WithMetricsListen overrides the metrics listen address. An empty address
// disables the HTTP endpoint.
func WithMetricsListen(addr string) Option {
	return func(d *Daemon) {
		d.metricsListen = addr
	}
}

// WithRegistry records metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(d *Daemon) {
		d.registry = reg
	}
}

// WithDiscoveryObserver reports every discovery poll to fn.
func WithDiscoveryObserver(fn e133.DiscoveryCallback) Option {
	return func(d *Daemon) {
		d.onDiscovery = fn
	}
}

// WithEventObserver reports every registration outcome to fn.
func WithEventObserver(fn func(Event)) Option {
	return func(d *Daemon) {
		d.onEvent = fn
	}
}

// WithShutdownTimeout sets how long shutdown waits for deregistrations and
// the metrics server.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		d.shutdownTimeout = timeout
	}
}

// Daemon keeps advertisements registered and discovery running until its
// context is cancelled.
type Daemon struct {
	cfg             *config.Config
	agent           slp.Agent
	advertisements  []config.Advertisement
	metricsListen   string
	registry        *prometheus.Registry
	onDiscovery     e133.DiscoveryCallback
	onEvent         func(Event)
	shutdownTimeout time.Duration

	caller *reactor.SelectServer
	thread *e133.SLPThread

	metricsSrv *http.Server
	metricsLn  net.Listener

	started    atomic.Bool
	stopping   atomic.Bool
	callerDone chan struct{}

	mu        sync.Mutex
	endpoints []string
}

// New creates a Daemon for cfg. The agent is not opened until Run.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		cfg:             cfg,
		advertisements:  cfg.Advertisements,
		metricsListen:   cfg.Metrics.Listen,
		shutdownTimeout: DefaultShutdownTimeout,
		callerDone:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.agent == nil {
		agent, err := NewAgent(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent: %w", err)
		}
		d.agent = agent
	}

	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
		d.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	caller, err := reactor.NewSelectServer()
	if err != nil {
		return nil, fmt.Errorf("failed to create caller reactor: %w", err)
	}
	d.caller = caller

	d.thread = e133.NewSLPThread(caller, d.agent, d.discoveryComplete, cfg.ThreadConfig(),
		e133.WithMetrics(e133.NewMetrics(d.registry)),
		e133.WithRenewalHook(func(endpoint string, ok bool) {
			d.notify(ActionRenew, endpoint, ok)
		}),
	)

	return d, nil
}

// Registry returns the registry holding the daemon's metrics.
func (d *Daemon) Registry() *prometheus.Registry {
	return d.registry
}

// MetricsAddr returns the address the metrics server listens on, or an
// empty string when it is not running.
func (d *Daemon) MetricsAddr() string {
	if d.metricsLn == nil {
		return ""
	}
	return d.metricsLn.Addr().String()
}

// Endpoints returns the endpoints found by the last successful poll.
func (d *Daemon) Endpoints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.endpoints...)
}

// Rescan requests an immediate discovery poll. It may be called from any
// goroutine once Run has started.
func (d *Daemon) Rescan() bool {
	if !d.started.Load() || d.stopping.Load() {
		return false
	}
	return d.thread.TriggerDiscovery()
}

// Run starts the bridge and blocks until ctx is cancelled or a component
// fails. A Daemon can only be run once.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	if d.metricsListen != "" {
		ln, err := net.Listen("tcp", d.metricsListen)
		if err != nil {
			_ = d.caller.Close()
			return fmt.Errorf("failed to listen on %s: %w", d.metricsListen, err)
		}
		d.metricsLn = ln
		d.metricsSrv = newMetricsServer(d.registry)
	}

	if !d.thread.Init() {
		d.closeListener()
		_ = d.caller.Close()
		return ErrThreadInit
	}
	if !d.thread.Start() {
		d.thread.Cleanup()
		d.closeListener()
		_ = d.caller.Close()
		return ErrThreadStart
	}

	logging.Info("E1.33 SLP bridge started",
		zap.String("backend", d.cfg.Backend),
		zap.String("service", d.thread.Config().ServiceName),
		zap.Int("advertisements", len(d.advertisements)),
		zap.String("metrics", d.MetricsAddr()),
	)

	d.advertise()
	d.thread.TriggerDiscovery()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(d.callerDone)
		d.caller.Run()
		if !d.stopping.Load() {
			return errCallerStopped
		}
		return nil
	})
	if d.metricsSrv != nil {
		g.Go(func() error {
			logging.Info("Serving metrics", zap.String("addr", d.MetricsAddr()))
			if err := d.metricsSrv.Serve(d.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return d.shutdown()
	})

	err := g.Wait()
	return multierr.Append(err, d.caller.Close())
}

// advertise registers every configured endpoint.
func (d *Daemon) advertise() {
	for _, ad := range d.advertisements {
		endpoint := ad.Endpoint
		d.thread.Register(endpoint, d.cfg.EffectiveLifetime(ad), func(ok bool) {
			d.notify(ActionRegister, endpoint, ok)
		})
	}
}

// withdraw deregisters every advertised endpoint and waits for the outcomes.
// Completions run on the caller reactor, which must still be running.
func (d *Daemon) withdraw() {
	if len(d.advertisements) == 0 {
		return
	}

	results := make(chan struct{}, len(d.advertisements))
	for _, ad := range d.advertisements {
		endpoint := ad.Endpoint
		d.thread.Deregister(endpoint, func(ok bool) {
			d.notify(ActionDeregister, endpoint, ok)
			results <- struct{}{}
		})
	}

	timer := time.NewTimer(d.shutdownTimeout)
	defer timer.Stop()
	for range d.advertisements {
		select {
		case <-results:
		case <-timer.C:
			logging.Warn("Timed out waiting for deregistrations",
				zap.Duration("timeout", d.shutdownTimeout),
			)
			return
		}
	}
}

// shutdown withdraws advertisements and stops every component in order.
func (d *Daemon) shutdown() error {
	logging.Info("Shutting down E1.33 SLP bridge...")

	var err error
	if !d.caller.IsTerminated() {
		d.withdraw()
	}
	d.stopping.Store(true)

	if d.thread.State() == e133.StateRunning && !d.thread.Stop() {
		err = multierr.Append(err, errors.New("failed to stop SLP thread"))
	}

	d.caller.Terminate()
	<-d.callerDone
	d.thread.Cleanup()

	if d.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout)
		defer cancel()
		if shutdownErr := d.metricsSrv.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to shut down metrics server: %w", shutdownErr))
		}
	}

	logging.Info("E1.33 SLP bridge stopped")
	return err
}

func (d *Daemon) closeListener() {
	if d.metricsLn != nil {
		_ = d.metricsLn.Close()
		d.metricsLn = nil
		d.metricsSrv = nil
	}
}

// discoveryComplete runs on the caller reactor.
func (d *Daemon) discoveryComplete(ok bool, endpoints []string) {
	if ok {
		d.mu.Lock()
		d.endpoints = append([]string(nil), endpoints...)
		d.mu.Unlock()
	}
	if d.onDiscovery != nil {
		d.onDiscovery(ok, endpoints)
	}
}

func (d *Daemon) notify(action, endpoint string, ok bool) {
	if d.onEvent != nil {
		d.onEvent(Event{Action: action, Endpoint: endpoint, OK: ok})
	}
}
