// Package dashboard serves the interactive QA menu: a page listing the
// declared steps, a trigger endpoint that starts a run in the background,
// and live output over a websocket or an SSE stream.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/logger"
	"github.com/dusk-indust/qacheck/internal/orchestrator"
)

const (
	shutdownTimeout = 5 * time.Second
	runHistory      = 100
)

// Executor runs steps on behalf of the dashboard.
type Executor interface {
	Steps() []string
	Execute(ctx context.Context, p orchestrator.Printer, opts orchestrator.Options, stepNames ...string) (bool, error)
}

// Server is the menu HTTP server. At most one run is active at a time.
type Server struct {
	exec     Executor
	settings config.DashboardSettings
	console  io.Writer

	pool      *ants.Pool
	runs      *RunStore
	listeners listenerSlot
	engine    *gin.Engine

	// activeRun is the ID of the run holding the single slot, or empty.
	// It is released before the result frame, so a client reacting to
	// that frame can trigger again at once.
	activeMu  sync.Mutex
	activeRun string

	// ctx bounds every background run and live connection.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a Server. Run output is mirrored to console.
func New(exec Executor, settings config.DashboardSettings, console io.Writer) (*Server, error) {
	pool, err := ants.NewPool(1,
		ants.WithMaxBlockingTasks(1),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("run panic recovered", zap.Any("panic", p), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard: create pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		exec:     exec,
		settings: settings,
		console:  console,
		pool:     pool,
		runs:     NewRunStore(runHistory),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.engine = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if len(s.settings.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: s.settings.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/", s.handleIndex)
	router.GET("/ws", s.handleWebsocket)
	router.GET("/events", s.handleEvents)
	router.GET("/runs", s.handleListRuns)
	router.GET("/runs/:id", s.handleGetRun)
	router.GET("/:file", s.handleFile)
	router.POST("/", s.handleTrigger)
	return router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// claim takes the run slot for id. It fails while another run holds it.
func (s *Server) claim(id string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.activeRun != "" {
		return false
	}
	s.activeRun = id
	return true
}

// release frees the run slot if id still holds it.
func (s *Server) release(id string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.activeRun == id {
		s.activeRun = ""
	}
}

// Connected reports whether a live listener is attached.
func (s *Server) Connected() bool {
	return s.listeners.current() != nil
}

// Runs returns the run history.
func (s *Server) Runs() *RunStore {
	return s.runs
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully and releases the run pool.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.cancel)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("dashboard listening", zap.String("addr", s.settings.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard: shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Close()
	return err
}

// Close cancels any active run and releases the pool.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.pool.ReleaseTimeout(shutdownTimeout); err != nil {
			logger.Warn("run pool release timeout", zap.Error(err))
		}
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
