package e133

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/reactor"
	"github.com/muurk/e133slp/internal/slp"
)

// registration is the lease state of one advertised endpoint.
type registration struct {
	lifetime uint16
	timeout  reactor.TimeoutID
}

// Register advertises endpoint for lifetime seconds and keeps renewing it
// until Deregister. Lifetimes shorter than twice the aging interval are
// raised to it. onComplete runs once on the caller's reactor.
func (t *SLPThread) Register(endpoint string, lifetime uint16, onComplete RegistrationCallback) {
	if minimum := 2 * uint32(t.cfg.AgingTime); uint32(lifetime) < minimum {
		forced := clampUint16(minimum)
		logging.Warn("Registration lifetime is less than twice the aging time, forcing it up",
			zap.String("endpoint", endpoint),
			zap.Uint16("requested", lifetime),
			zap.Uint16("aging_time", t.cfg.AgingTime),
			zap.Uint16("lifetime", forced),
		)
		lifetime = forced
	}

	t.request(func() {
		t.registerRequest(endpoint, lifetime, onComplete)
	})
}

// Deregister withdraws endpoint and stops renewing it. Endpoints that were
// never registered are still passed to the agent. onComplete runs once on
// the caller's reactor.
func (t *SLPThread) Deregister(endpoint string, onComplete RegistrationCallback) {
	t.request(func() {
		t.deregisterRequest(endpoint, onComplete)
	})
}

// registerRequest runs on the worker goroutine.
func (t *SLPThread) registerRequest(endpoint string, lifetime uint16, onComplete RegistrationCallback) {
	if lifetime < t.cfg.MinLifetime {
		lifetime = t.cfg.MinLifetime
	}

	minRefresh := t.agent.MinRefreshInterval()
	logging.Debug("Minimum refresh interval from agent", zap.Uint16("seconds", minRefresh))
	if minRefresh != 0 && lifetime < minRefresh {
		lifetime = minRefresh
	}

	reg, exists := t.registrations[endpoint]
	if exists {
		if reg.lifetime == lifetime {
			logging.Debug("Lifetime matches current registration, ignoring update",
				zap.String("endpoint", endpoint),
				zap.Uint16("lifetime", lifetime),
			)
			t.completeRegistration(onComplete, true)
			return
		}
		t.worker.RemoveTimeout(reg.timeout)
		reg.timeout = reactor.InvalidTimeout
	} else {
		reg = &registration{timeout: reactor.InvalidTimeout}
		t.registrations[endpoint] = reg
	}
	reg.lifetime = lifetime

	ok := t.performRegistration(endpoint, reg)
	logging.LogRegistration("register", endpoint, lifetime, ok)
	t.metrics.observeRegistration(ok, len(t.registrations))
	t.completeRegistration(onComplete, ok)
}

// performRegistration registers endpoint with the agent and schedules the
// next renewal, whatever the outcome.
func (t *SLPThread) performRegistration(endpoint string, reg *registration) bool {
	ok := true
	if err := t.agent.Register(slp.ServiceURLFor(t.cfg.ServiceName, endpoint), reg.lifetime); err != nil {
		logging.Info("Error registering service with SLP",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		ok = false
	}

	delay := t.renewalDelay(reg.lifetime)
	logging.Debug("Scheduled next registration",
		zap.String("endpoint", endpoint),
		zap.Duration("in", delay),
	)
	reg.timeout = t.worker.RegisterSingleTimeout(delay, func() {
		t.renewalTriggered(endpoint)
	})
	return ok
}

// renewalDelay is how long after registering to register again: the aging
// interval plus one second before the lease runs out.
func (t *SLPThread) renewalDelay(lifetime uint16) time.Duration {
	return seconds(int(lifetime) - int(t.cfg.AgingTime) - 1)
}

// renewalTriggered runs on the worker goroutine when a renewal timer fires.
func (t *SLPThread) renewalTriggered(endpoint string) {
	reg, ok := t.registrations[endpoint]
	if !ok {
		return
	}
	reg.timeout = reactor.InvalidTimeout

	renewed := t.performRegistration(endpoint, reg)
	logging.LogRegistration("renew", endpoint, reg.lifetime, renewed)
	t.metrics.observeRenewal(renewed)

	if hook := t.onRenewal; hook != nil {
		t.complete(func() {
			hook(endpoint, renewed)
		})
	}
}

// deregisterRequest runs on the worker goroutine.
func (t *SLPThread) deregisterRequest(endpoint string, onComplete RegistrationCallback) {
	if reg, ok := t.registrations[endpoint]; ok {
		logging.Debug("Removing registration", zap.String("endpoint", endpoint))
		t.worker.RemoveTimeout(reg.timeout)
		delete(t.registrations, endpoint)
	}

	ok := true
	if err := t.agent.Deregister(slp.ServiceURLFor(t.cfg.ServiceName, endpoint)); err != nil {
		logging.Info("Error deregistering service with SLP",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		ok = false
	}

	logging.LogRegistration("deregister", endpoint, 0, ok)
	t.metrics.observeDeregistration(ok, len(t.registrations))
	t.completeRegistration(onComplete, ok)
}

func (t *SLPThread) completeRegistration(onComplete RegistrationCallback, ok bool) {
	if onComplete == nil {
		return
	}
	t.complete(func() {
		onComplete(ok)
	})
}

func clampUint16(v uint32) uint16 {
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}
