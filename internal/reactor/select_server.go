package reactor

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/muurk/e133slp/internal/logging"
)

// TimeoutID identifies a scheduled one-shot timeout on a SelectServer.
type TimeoutID uint64

// InvalidTimeout is the zero TimeoutID; it never identifies a live timeout.
const InvalidTimeout TimeoutID = 0

// Option configures a SelectServer.
type Option func(*SelectServer)

// WithClock sets the time source used for timeouts.
func WithClock(c clock.Clock) Option {
	return func(s *SelectServer) {
		s.clock = c
	}
}

// SelectServer is a single-goroutine event loop over readable sockets and
// one-shot timeouts.
type SelectServer struct {
	clock clock.Clock

	// wake interrupts poll for Terminate and Execute.
	wake     *LoopbackSocket
	internal *ActionQueue

	mu      sync.Mutex
	sockets map[int]ReadableSocket
	timers  timeoutHeap
	byID    map[TimeoutID]*timeout
	nextID  TimeoutID
	nextSeq uint64

	terminated atomic.Bool
	running    atomic.Bool
}

// NewSelectServer creates a server with its internal wake socket open.
func NewSelectServer(opts ...Option) (*SelectServer, error) {
	wake := NewLoopbackSocket()
	if err := wake.Init(); err != nil {
		return nil, fmt.Errorf("failed to create wake socket: %w", err)
	}

	s := &SelectServer{
		clock:    clock.New(),
		wake:     wake,
		internal: NewActionQueue(wake),
		sockets:  make(map[int]ReadableSocket),
		byID:     make(map[TimeoutID]*timeout),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Clock returns the server's time source.
func (s *SelectServer) Clock() clock.Clock {
	return s.clock
}

// AddSocket starts watching a socket for readability.
func (s *SelectServer) AddSocket(sock ReadableSocket) error {
	fd := sock.ReadDescriptor()
	if fd == ClosedDescriptor {
		return ErrInvalidSocket
	}

	s.mu.Lock()
	s.sockets[fd] = sock
	s.mu.Unlock()
	return nil
}

// RemoveSocket stops watching a socket. It must be called before the
// socket's descriptor is closed.
func (s *SelectServer) RemoveSocket(sock ReadableSocket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for fd, registered := range s.sockets {
		if registered == sock {
			delete(s.sockets, fd)
			return nil
		}
	}
	return ErrUnknownSocket
}

// RegisterSingleTimeout runs fn once on the loop goroutine after delay.
// Negative delays are treated as zero.
func (s *SelectServer) RegisterSingleTimeout(delay time.Duration, fn Action) TimeoutID {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.nextSeq++
	t := &timeout{
		id:   s.nextID,
		when: s.clock.Now().Add(delay),
		seq:  s.nextSeq,
		fn:   fn,
	}
	heap.Push(&s.timers, t)
	s.byID[t.id] = t
	return t.id
}

// RemoveTimeout cancels a pending timeout. Unknown, fired and invalid IDs are
// ignored.
func (s *SelectServer) RemoveTimeout(id TimeoutID) {
	if id == InvalidTimeout {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	heap.Remove(&s.timers, t.index)
}

// PendingTimeouts returns the number of scheduled timeouts.
func (s *SelectServer) PendingTimeouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Execute runs fn on the loop goroutine during its next iteration.
func (s *SelectServer) Execute(fn Action) error {
	return s.internal.Enqueue(fn)
}

// Terminate makes Run return after the current iteration. It is sticky: a
// terminated server cannot be run again.
func (s *SelectServer) Terminate() {
	s.terminated.Store(true)
	_ = s.wake.Wake()
}

// IsTerminated reports whether Terminate has been called.
func (s *SelectServer) IsTerminated() bool {
	return s.terminated.Load()
}

// IsRunning reports whether a goroutine is inside Run.
func (s *SelectServer) IsRunning() bool {
	return s.running.Load()
}

// Run dispatches events on the calling goroutine until Terminate is called.
func (s *SelectServer) Run() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	for !s.terminated.Load() {
		if err := s.RunOnce(-1); err != nil {
			logging.Error("Select server stopping after poll failure", zap.Error(err))
			s.terminated.Store(true)
		}
	}
}

// RunOnce performs a single loop iteration: wait for readiness for at most
// maxWait (forever when negative, bounded by the next timeout), dispatch
// readable sockets, then fire due timeouts.
func (s *SelectServer) RunOnce(maxWait time.Duration) error {
	pollFds, socks := s.pollSet()

	waitMs := s.pollTimeout(maxWait)
	_, err := unix.Poll(pollFds, waitMs)
	if err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("poll failed: %w", err)
	}

	if err == nil {
		for i, pfd := range pollFds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			if i == 0 {
				s.internal.DrainAndRun()
				continue
			}
			if s.stillRegistered(int(pfd.Fd), socks[i]) {
				socks[i].PerformRead()
			}
		}
	}

	s.fireTimeouts(s.clock.Now())
	return nil
}

// Close releases the internal wake socket.
func (s *SelectServer) Close() error {
	s.mu.Lock()
	s.sockets = make(map[int]ReadableSocket)
	s.mu.Unlock()
	return s.wake.Close()
}

// pollSet snapshots the descriptors to poll. Index 0 is always the wake socket.
func (s *SelectServer) pollSet() ([]unix.PollFd, []ReadableSocket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pollFds := make([]unix.PollFd, 0, len(s.sockets)+1)
	socks := make([]ReadableSocket, 0, len(s.sockets)+1)

	pollFds = append(pollFds, unix.PollFd{Fd: int32(s.wake.ReadDescriptor()), Events: unix.POLLIN})
	socks = append(socks, s.wake)

	for fd, sock := range s.sockets {
		pollFds = append(pollFds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		socks = append(socks, sock)
	}
	return pollFds, socks
}

func (s *SelectServer) stillRegistered(fd int, sock ReadableSocket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	registered, ok := s.sockets[fd]
	return ok && registered == sock
}

// pollTimeout converts the wait bound into poll(2) milliseconds, rounding up
// so the loop does not wake just before a deadline.
func (s *SelectServer) pollTimeout(maxWait time.Duration) int {
	s.mu.Lock()
	wait := maxWait
	if len(s.timers) > 0 {
		untilNext := s.timers[0].when.Sub(s.clock.Now())
		if untilNext < 0 {
			untilNext = 0
		}
		if wait < 0 || untilNext < wait {
			wait = untilNext
		}
	}
	s.mu.Unlock()

	if wait < 0 {
		return -1
	}
	return int((wait + time.Millisecond - 1) / time.Millisecond)
}

// fireTimeouts runs every timeout due at now in deadline order. Timeouts
// registered by a callback are evaluated against the same now, so a callback
// rescheduling itself with a zero delay runs on the next iteration instead.
func (s *SelectServer) fireTimeouts(now time.Time) {
	limit := s.lastSeq()
	for {
		s.mu.Lock()
		if len(s.timers) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.timers[0]
		if next.when.After(now) || next.seq > limit {
			s.mu.Unlock()
			return
		}
		heap.Pop(&s.timers)
		delete(s.byID, next.id)
		s.mu.Unlock()

		next.fn()
	}
}

func (s *SelectServer) lastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

type timeout struct {
	id    TimeoutID
	when  time.Time
	seq   uint64
	fn    Action
	index int
}

// timeoutHeap orders timeouts by deadline, then by registration order.
type timeoutHeap []*timeout

func (h timeoutHeap) Len() int { return len(h) }

func (h timeoutHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timeoutHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timeoutHeap) Push(x any) {
	t := x.(*timeout)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timeoutHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
