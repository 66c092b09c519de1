package dashboard

import (
	"errors"
	"sync"

	"github.com/dusk-indust/qacheck/internal/output"
)

var errListenerClosed = errors.New("dashboard: listener closed")

// Compile-time interface check.
var _ output.Listener = (*stream)(nil)

// stream is the output.Listener side of a connected browser. A handler
// goroutine owns the connection and drains out; Send only queues.
type stream struct {
	out  chan output.Message
	done chan struct{}
	once sync.Once
}

func newStream() *stream {
	return &stream{
		out:  make(chan output.Message, 64),
		done: make(chan struct{}),
	}
}

// Send queues msg for the connection. It fails once the connection is gone.
func (s *stream) Send(msg output.Message) error {
	select {
	case <-s.done:
		return errListenerClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.done:
		return errListenerClosed
	}
}

// Closed reports whether the connection has gone away.
func (s *stream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *stream) close() {
	s.once.Do(func() { close(s.done) })
}

// listenerSlot holds the most recently connected listener. A new connection
// replaces the previous one, as the menu page only shows one output pane.
type listenerSlot struct {
	mu sync.Mutex
	l  *stream
}

func (ls *listenerSlot) set(l *stream) {
	ls.mu.Lock()
	ls.l = l
	ls.mu.Unlock()
}

// clear removes l if it is still the current listener.
func (ls *listenerSlot) clear(l *stream) {
	ls.mu.Lock()
	if ls.l == l {
		ls.l = nil
	}
	ls.mu.Unlock()
}

// current returns the live listener, or nil.
func (ls *listenerSlot) current() *stream {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.l == nil || ls.l.Closed() {
		return nil
	}
	return ls.l
}
