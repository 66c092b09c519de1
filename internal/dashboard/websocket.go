package dashboard

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/logger"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.settings.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(s.settings.AllowedOrigins, origin)
		},
	}
}

// handleWebsocket attaches a websocket as the live listener. The read loop
// only keeps the connection open; the menu never sends anything.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	l := newStream()
	s.listeners.set(l)
	defer s.listeners.clear(l)
	defer l.close()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		logger.Warn("websocket set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer l.close()
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-l.done:
				return
			case <-s.ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(wsWriteWait))
				return
			case msg := <-l.out:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("websocket write failed", zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	logger.Debug("websocket listener attached", zap.String("remote", c.Request.RemoteAddr))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	l.close()
	<-writerDone
	logger.Debug("websocket listener detached", zap.String("remote", c.Request.RemoteAddr))
}
