// Package e133 bridges a blocking SLP agent onto a single-threaded reactor.
//
// An SLPThread owns a private worker goroutine running its own
// reactor.SelectServer. Every agent call happens on that goroutine; every
// user callback runs on the caller's reactor. The two sides exchange work
// through a pair of reactor.ActionQueue values, each woken by its own
// loopback socket:
//
//	caller ──incoming queue──▶ worker (agent calls, renewal and poll timers)
//	caller ◀──outgoing queue── worker (completions)
//
// # Registrations
//
// Register advertises an endpoint and keeps it alive by re-registering
// AgingTime+1 seconds before the lease expires. Lifetimes below twice the
// aging interval, below MinLifetime, or below the agent's minimum refresh
// interval are raised rather than rejected.
//
// # Discovery
//
// TriggerDiscovery runs one FindServices call and schedules the next one for
// the shortest remaining lifetime among the results, never later than
// RefreshTime. Results reach the DiscoveryCallback passed to NewSLPThread.
//
// # Usage
//
//	ss, _ := reactor.NewSelectServer()
//	thread := e133.NewSLPThread(ss, agent, onDiscovery, e133.DefaultConfig())
//	if !thread.Init() || !thread.Start() {
//	    return errors.New("failed to start SLP thread")
//	}
//	defer thread.Cleanup()
//	thread.TriggerDiscovery()
//	ss.Run()
package e133
