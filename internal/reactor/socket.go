package reactor

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ClosedDescriptor is returned by ReadDescriptor when the socket is closed.
const ClosedDescriptor = -1

// wakeByte is the value written by Wake. Its content is never inspected.
const wakeByte = 'a'

// ReadableSocket is anything a SelectServer can watch for readability.
type ReadableSocket interface {
	// ReadDescriptor returns the descriptor to poll, or ClosedDescriptor.
	ReadDescriptor() int

	// PerformRead is called on the loop goroutine when the descriptor is readable.
	PerformRead()
}

// LoopbackSocket is a connected socket pair used as an edge-triggered signal
// between goroutines. Send and Wake write to one end; the owning SelectServer
// polls the other.
type LoopbackSocket struct {
	mu     sync.RWMutex
	fds    [2]int
	open   bool
	onData func()
}

// NewLoopbackSocket returns an uninitialized socket. Call Init before use.
func NewLoopbackSocket() *LoopbackSocket {
	return &LoopbackSocket{fds: [2]int{ClosedDescriptor, ClosedDescriptor}}
}

// Init creates the underlying non-blocking socket pair.
func (s *LoopbackSocket) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return ErrAlreadyInitialized
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("failed to create socket pair: %w", err)
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return fmt.Errorf("failed to set socket non-blocking: %w", err)
		}
	}

	s.fds = fds
	s.open = true
	return nil
}

// SetOnData sets the callback run when the read end becomes readable.
func (s *LoopbackSocket) SetOnData(fn func()) {
	s.mu.Lock()
	s.onData = fn
	s.mu.Unlock()
}

// ReadDescriptor implements ReadableSocket.
func (s *LoopbackSocket) ReadDescriptor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return ClosedDescriptor
	}
	return s.fds[0]
}

// PerformRead implements ReadableSocket.
func (s *LoopbackSocket) PerformRead() {
	s.mu.RLock()
	fn := s.onData
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Send writes b to the write end. A full socket buffer is not an error: the
// reader already has a pending wake-up and will drain it.
func (s *LoopbackSocket) Send(b []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return 0, ErrNotInitialized
	}

	n, err := unix.Write(s.fds[1], b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to write to loopback socket: %w", err)
	}
	return n, nil
}

// Wake writes a single byte so the reading loop wakes up.
func (s *LoopbackSocket) Wake() error {
	_, err := s.Send([]byte{wakeByte})
	return err
}

// Drain reads and discards every pending byte, returning how many were read.
func (s *LoopbackSocket) Drain() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return 0
	}

	var buf [64]byte
	total := 0
	for {
		n, err := unix.Read(s.fds[0], buf[:])
		if n > 0 {
			total += n
		}
		if err != nil || n <= 0 {
			return total
		}
	}
}

// DataRemaining reports whether unread bytes are pending on the read end.
func (s *LoopbackSocket) DataRemaining() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return false
	}

	fds := []unix.PollFd{{Fd: int32(s.fds[0]), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	return err == nil && n > 0 && fds[0].Revents&unix.POLLIN != 0
}

// IsOpen reports whether Init succeeded and Close has not been called.
func (s *LoopbackSocket) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Close closes both ends. Closing a closed socket is a no-op.
func (s *LoopbackSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	err0 := unix.Close(s.fds[0])
	err1 := unix.Close(s.fds[1])
	s.fds = [2]int{ClosedDescriptor, ClosedDescriptor}

	if err0 != nil {
		return fmt.Errorf("failed to close loopback socket: %w", err0)
	}
	if err1 != nil {
		return fmt.Errorf("failed to close loopback socket: %w", err1)
	}
	return nil
}
