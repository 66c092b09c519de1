package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dusk-indust/qacheck/internal/output"
)

// eventStream frames listener messages as Server-Sent Events. Each frame
// carries an event name so browser clients can subscribe per kind.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func openEventStream(w http.ResponseWriter) *eventStream {
	es := &eventStream{w: w}
	es.flusher, _ = w.(http.Flusher)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	es.flush()
	return es
}

func (es *eventStream) flush() {
	if es.flusher != nil {
		es.flusher.Flush()
	}
}

// send writes msg as "event: <kind>" followed by its JSON data line.
func (es *eventStream) send(msg output.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dashboard: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(es.w, "event: %s\ndata: %s\n\n", eventKind(msg), data); err != nil {
		return fmt.Errorf("dashboard: write event: %w", err)
	}
	es.flush()
	return nil
}

// ping writes a comment frame so idle proxies keep the stream open.
func (es *eventStream) ping() error {
	if _, err := fmt.Fprint(es.w, ": ping\n\n"); err != nil {
		return err
	}
	es.flush()
	return nil
}

func eventKind(msg output.Message) string {
	switch {
	case msg.Result != "":
		return "result"
	case msg.Error != "":
		return "error"
	case msg.Step != "":
		return "progress"
	default:
		return "output"
	}
}

// handleEvents attaches an SSE stream as the live listener, for clients
// that cannot hold a websocket.
func (s *Server) handleEvents(c *gin.Context) {
	es := openEventStream(c.Writer)

	l := newStream()
	s.listeners.set(l)
	defer s.listeners.clear(l)
	defer l.close()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-l.out:
			if err := es.send(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := es.ping(); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		case <-s.ctx.Done():
			return
		}
	}
}
