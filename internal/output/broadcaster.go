// Package output routes progress text to the console and, when one is
// attached, to a live remote listener.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/logger"
)

// Listener is a live observer of a run, such as a websocket or an SSE
// stream.
type Listener interface {
	// Send delivers one frame. It may block until the frame is written.
	Send(msg Message) error

	// Closed reports whether the underlying channel is gone.
	Closed() bool
}

// Broadcaster writes every line to the console and mirrors it, translated
// to markup, to at most one attached listener.
type Broadcaster struct {
	mu       sync.Mutex
	console  io.Writer
	listener Listener
}

// NewBroadcaster creates a Broadcaster writing to console.
func NewBroadcaster(console io.Writer) *Broadcaster {
	return &Broadcaster{console: console}
}

// Attach sets the live listener, replacing any previous one. A nil l
// leaves the broadcaster console-only.
func (b *Broadcaster) Attach(l Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

// Listener returns the attached listener, or nil.
func (b *Broadcaster) Listener() Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listener
}

// Write emits one progress line. The console write is synchronous; the
// listener receives the line as an Output frame if it is still open.
func (b *Broadcaster) Write(line string) {
	line = strings.TrimRight(line, "\r\n")

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.console != nil {
		fmt.Fprintln(b.console, line)
	}
	b.sendLocked(Message{Output: ToHTML(line)})
}

// Send delivers a structured frame to the listener only.
func (b *Broadcaster) Send(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendLocked(msg)
}

func (b *Broadcaster) sendLocked(msg Message) {
	if b.listener == nil || b.listener.Closed() {
		return
	}
	if err := b.listener.Send(msg); err != nil {
		logger.Warn("live listener send failed, detaching", zap.Error(err))
		b.listener = nil
	}
}
