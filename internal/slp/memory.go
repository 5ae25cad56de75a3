package slp

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNotOpen is returned by MemoryAgent calls made before Open or after Close.
var ErrNotOpen = errors.New("slp: agent is not open")

// MemoryAgent is an in-process Agent. Registrations live in a map and expire
// after their lifetime, the way a directory agent would drop them.
type MemoryAgent struct {
	mu            sync.Mutex
	clock         clock.Clock
	open          bool
	registrations map[string]memoryRegistration
	minRefresh    uint16
	calls         map[string]int

	// OpenErr, FindErr, RegisterErr and DeregisterErr, when set, are returned
	// by the matching call instead of performing it.
	OpenErr       error
	FindErr       error
	RegisterErr   error
	DeregisterErr error
}

type memoryRegistration struct {
	lifetime uint16
	expires  time.Time
}

// NewMemoryAgent returns an empty agent using the wall clock.
func NewMemoryAgent() *MemoryAgent {
	return NewMemoryAgentWithClock(clock.New())
}

// NewMemoryAgentWithClock returns an empty agent driven by c.
func NewMemoryAgentWithClock(c clock.Clock) *MemoryAgent {
	return &MemoryAgent{
		clock:         c,
		registrations: make(map[string]memoryRegistration),
		calls:         make(map[string]int),
	}
}

// SetMinRefreshInterval sets the value returned by MinRefreshInterval.
func (a *MemoryAgent) SetMinRefreshInterval(seconds uint16) {
	a.mu.Lock()
	a.minRefresh = seconds
	a.mu.Unlock()
}

// SetFailure sets the error returned by the named call ("open", "find",
// "register" or "deregister"). A nil err clears it.
func (a *MemoryAgent) SetFailure(call string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch call {
	case "open":
		a.OpenErr = err
	case "find":
		a.FindErr = err
	case "register":
		a.RegisterErr = err
	case "deregister":
		a.DeregisterErr = err
	}
}

// Calls returns how many times the named call was made.
func (a *MemoryAgent) Calls(call string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[call]
}

// Lifetime returns the registered lifetime of serviceURL, if it is live.
func (a *MemoryAgent) Lifetime(serviceURL string) (uint16, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expireLocked()
	reg, ok := a.registrations[serviceURL]
	return reg.lifetime, ok
}

// Open implements Agent.
func (a *MemoryAgent) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["open"]++
	if a.OpenErr != nil {
		return a.OpenErr
	}
	a.open = true
	return nil
}

// Close implements Agent.
func (a *MemoryAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["close"]++
	a.open = false
	return nil
}

// FindServices implements Agent. Results are sorted by URL and carry the
// remaining lifetime in whole seconds.
func (a *MemoryAgent) FindServices(serviceType string) ([]ServiceEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["find"]++

	if !a.open {
		return nil, ErrNotOpen
	}
	if a.FindErr != nil {
		return nil, a.FindErr
	}

	a.expireLocked()
	now := a.clock.Now()
	prefix := serviceType + urlSeparator

	var entries []ServiceEntry
	for url, reg := range a.registrations {
		if !strings.HasPrefix(url, prefix) {
			continue
		}
		remaining := reg.expires.Sub(now) / time.Second
		entries = append(entries, ServiceEntry{URL: url, Lifetime: uint16(remaining)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	return entries, nil
}

// Register implements Agent.
func (a *MemoryAgent) Register(serviceURL string, lifetime uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["register"]++

	if !a.open {
		return ErrNotOpen
	}
	if a.RegisterErr != nil {
		return a.RegisterErr
	}
	if lifetime == 0 {
		return InvalidRegistration
	}

	a.registrations[serviceURL] = memoryRegistration{
		lifetime: lifetime,
		expires:  a.clock.Now().Add(time.Duration(lifetime) * time.Second),
	}
	return nil
}

// Deregister implements Agent. Withdrawing an unknown URL succeeds.
func (a *MemoryAgent) Deregister(serviceURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls["deregister"]++

	if !a.open {
		return ErrNotOpen
	}
	if a.DeregisterErr != nil {
		return a.DeregisterErr
	}
	delete(a.registrations, serviceURL)
	return nil
}

// MinRefreshInterval implements Agent.
func (a *MemoryAgent) MinRefreshInterval() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minRefresh
}

func (a *MemoryAgent) expireLocked() {
	now := a.clock.Now()
	for url, reg := range a.registrations {
		if !reg.expires.After(now) {
			delete(a.registrations, url)
		}
	}
}
