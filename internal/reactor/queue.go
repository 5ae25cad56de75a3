package reactor

import "sync"

// Action is a deferred unit of work. Each queued action runs exactly once.
type Action func()

// ActionQueue is a FIFO of actions handed from producer goroutines to the
// loop that owns the paired LoopbackSocket.
type ActionQueue struct {
	mu      sync.Mutex
	actions []Action
	socket  *LoopbackSocket
}

// NewActionQueue pairs a queue with the socket used to wake its consumer.
func NewActionQueue(socket *LoopbackSocket) *ActionQueue {
	return &ActionQueue{socket: socket}
}

// Socket returns the paired wake socket.
func (q *ActionQueue) Socket() *LoopbackSocket {
	return q.socket
}

// Push appends an action without waking the consumer.
func (q *ActionQueue) Push(a Action) {
	if a == nil {
		return
	}
	q.mu.Lock()
	q.actions = append(q.actions, a)
	q.mu.Unlock()
}

// Enqueue appends an action and wakes the consumer.
func (q *ActionQueue) Enqueue(a Action) error {
	q.Push(a)
	return q.socket.Wake()
}

// Len returns the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// DrainAndRun discards pending wake bytes, then pops and runs actions one at a
// time until the queue is empty. The lock is never held while an action runs,
// so actions may enqueue more work. Returns the number of actions run.
func (q *ActionQueue) DrainAndRun() int {
	q.socket.Drain()

	ran := 0
	for {
		a, ok := q.pop()
		if !ok {
			return ran
		}
		a()
		ran++
	}
}

func (q *ActionQueue) pop() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) == 0 {
		return nil, false
	}
	a := q.actions[0]
	q.actions[0] = nil
	q.actions = q.actions[1:]
	if len(q.actions) == 0 {
		q.actions = nil
	}
	return a, true
}
