// Package reactor provides the single-goroutine event loop used on both sides
// of the SLP bridge, and the primitives used to hand work between two loops.
//
// # Components
//
//   - LoopbackSocket: a connected pair of local sockets used purely as a
//     wake-up signal. Writing one byte makes the read end readable; the reader
//     drains and discards every pending byte.
//   - ActionQueue: an ordered, mutex-protected queue of deferred actions
//     paired with a LoopbackSocket. Producers enqueue and wake; the consumer
//     drains the whole queue, running each action outside the lock.
//   - SelectServer: a poll(2) based loop that dispatches readable sockets and
//     one-shot timeouts on the goroutine calling Run.
//
// # Usage Example
//
//	ss, err := reactor.NewSelectServer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ss.Close()
//
//	ss.RegisterSingleTimeout(2*time.Second, func() {
//	    fmt.Println("two seconds later")
//	    ss.Terminate()
//	})
//	ss.Run()
//
// # Thread Safety
//
// Terminate, Execute, AddSocket, RemoveSocket, RegisterSingleTimeout and
// RemoveTimeout are safe to call from any goroutine. Callbacks always run on
// the goroutine executing Run. A TimeoutID is only meaningful to the server
// that returned it.
//
// # Platform Support
//
// The loop is built on golang.org/x/sys/unix and runs on Linux and macOS.
package reactor
