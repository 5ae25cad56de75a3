package e133

import (
	"go.uber.org/zap"

	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/reactor"
	"github.com/muurk/e133slp/internal/slp"
)

// minDiscoveryInterval keeps a zero remaining lifetime from turning the
// poller into a busy loop.
const minDiscoveryInterval uint16 = 1

// TriggerDiscovery runs a discovery poll now, replacing any scheduled one.
// The next poll follows after the shortest remaining lifetime among the
// results, at most RefreshTime and never sooner than one second.
// Returns false if the thread was created without a DiscoveryCallback.
func (t *SLPThread) TriggerDiscovery() bool {
	if t.onDiscovery == nil {
		logging.Warn("Attempted to run discovery but no callback was passed to NewSLPThread")
		return false
	}

	t.request(t.discoveryRequest)
	return true
}

// discoveryRequest runs on the worker goroutine.
func (t *SLPThread) discoveryRequest() {
	if t.discoveryTimeout != reactor.InvalidTimeout {
		t.worker.RemoveTimeout(t.discoveryTimeout)
		t.discoveryTimeout = reactor.InvalidTimeout
	}

	ok := true
	entries, err := t.agent.FindServices(t.cfg.ServiceName)
	if err != nil {
		logging.Info("Error finding services with SLP", zap.Error(err))
		ok = false
	}

	next := nextDiscoveryInterval(ok, entries, t.cfg.RefreshTime)

	endpoints := make([]string, 0, len(entries))
	for _, entry := range entries {
		endpoints = append(endpoints, entry.Endpoint())
	}

	logging.LogDiscovery(ok, len(endpoints), seconds(int(next)))
	t.metrics.observeDiscovery(ok, len(endpoints), next)

	t.discoveryTimeout = t.worker.RegisterSingleTimeout(seconds(int(next)), t.discoveryTriggered)

	onDiscovery := t.onDiscovery
	t.complete(func() {
		onDiscovery(ok, endpoints)
	})
}

// discoveryTriggered runs on the worker goroutine when the poll timer fires.
func (t *SLPThread) discoveryTriggered() {
	// The timer has fired, so there is nothing left to remove
	t.discoveryTimeout = reactor.InvalidTimeout
	t.discoveryRequest()
}

// nextDiscoveryInterval returns the delay in seconds before the next poll:
// the shortest remaining lifetime among entries, capped at refresh. Failed
// polls retry after refresh.
func nextDiscoveryInterval(ok bool, entries []slp.ServiceEntry, refresh uint16) uint16 {
	next := refresh
	if ok {
		for _, entry := range entries {
			if entry.Lifetime < next {
				next = entry.Lifetime
			}
		}
	}
	if next < minDiscoveryInterval {
		next = minDiscoveryInterval
	}
	return next
}
