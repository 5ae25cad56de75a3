// Package daemon runs the E1.33 SLP bridge as a long lived service.
//
// A Daemon owns the caller reactor, the SLP thread and the agent selected by
// the configuration. Run keeps the configured advertisements registered,
// polls for other E1.33 components and, when a listen address is set, serves
// Prometheus metrics over HTTP.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d, err := daemon.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	// Run blocks until ctx is done or a component fails
//	if err := d.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// When the context is cancelled the daemon:
//  1. Deregisters every advertised endpoint, waiting up to ShutdownTimeout
//  2. Stops the SLP worker goroutine
//  3. Stops the caller reactor and releases its sockets
//  4. Shuts down the metrics server
//
// # Observers
//
// WithDiscoveryObserver and WithEventObserver expose discovery results and
// registration outcomes. Observers run on the caller reactor goroutine and
// must not block.
package daemon
