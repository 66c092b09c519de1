package dashboard

import (
	"errors"
	"html"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/logger"
	"github.com/dusk-indust/qacheck/internal/orchestrator"
	"github.com/dusk-indust/qacheck/internal/output"
)

const (
	stepsLegend = "<legend>Perform steps:</legend>"
	stepField   = "step_"

	maxFormMemory = 1 << 20
)

func (s *Server) handleIndex(c *gin.Context) {
	page, err := s.readAsset(indexFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			page, err = defaultAssets.ReadFile("assets/" + indexFile)
		}
		if err != nil {
			logger.Error("read menu page", zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
	}

	content := strings.Replace(string(page), stepsLegend, stepsLegend+stepCheckboxes(s.exec.Steps()), 1)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(content))
}

// stepCheckboxes renders one checkbox and label per step name.
func stepCheckboxes(steps []string) string {
	var b strings.Builder
	for _, step := range steps {
		id := html.EscapeString(stepField + step)
		b.WriteString("<input type='checkbox' name='" + id + "' id='" + id + "'/>")
		b.WriteString("<label for='" + id + "'>" + html.EscapeString(step) + "</label><br />")
	}
	return b.String()
}

func (s *Server) handleFile(c *gin.Context) {
	name := c.Param("file")
	if name == indexFile {
		s.handleIndex(c)
		return
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.Status(http.StatusNotFound)
		return
	}

	data, err := s.readAsset(name)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) readAsset(name string) ([]byte, error) {
	if s.settings.AssetsDir == "" {
		return nil, fs.ErrNotExist
	}
	return os.ReadFile(filepath.Join(s.settings.AssetsDir, name))
}

func (s *Server) handleTrigger(c *gin.Context) {
	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		err = c.Request.ParseMultipartForm(maxFormMemory)
	} else {
		err = c.Request.ParseForm()
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	form := c.Request.PostForm

	changedOnly := s.settings.DefaultChangedOnly
	if form.Has("check_what") {
		changedOnly = form.Get("check_what") == "changed"
	}

	selected := make(map[string]bool)
	for key := range form {
		if name, ok := strings.CutPrefix(key, stepField); ok {
			selected[name] = true
		}
	}
	declared := s.exec.Steps()
	var steps, unknown []string
	for _, name := range declared {
		if selected[name] {
			steps = append(steps, name)
		}
	}
	for name := range selected {
		if !slices.Contains(declared, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown step: " + strings.Join(unknown, ", ")})
		return
	}

	opts := orchestrator.Options{
		Debug:  form.Has("debug"),
		Policy: files.PolicyFor(changedOnly),
	}
	run := Run{
		ID:        uuid.NewString(),
		Steps:     steps,
		Policy:    opts.Policy.String(),
		Debug:     opts.Debug,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if !s.claim(run.ID) {
		c.JSON(http.StatusConflict, gin.H{"status": "busy"})
		return
	}
	if err := s.runs.Create(run); err != nil {
		s.release(run.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	listener := s.listeners.current()
	err = s.pool.Submit(func() {
		defer s.release(run.ID)
		s.execute(run.ID, listener, opts, steps)
	})
	if err != nil {
		s.release(run.ID)
		s.runs.Delete(run.ID)
		if errors.Is(err, ants.ErrPoolOverload) {
			c.JSON(http.StatusConflict, gin.H{"status": "busy"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	logger.Info("run started",
		zap.String("run", run.ID),
		zap.Strings("steps", steps),
		zap.String("policy", run.Policy),
		zap.Bool("debug", run.Debug),
		zap.Bool("live", listener != nil),
	)
	c.JSON(http.StatusOK, gin.H{"status": "running", "run": run.ID})
}

// execute performs one run. The listener captured at trigger time receives
// the output; exactly one result frame ends the stream, sent after the run
// slot and the history entry are settled.
func (s *Server) execute(id string, listener *stream, opts orchestrator.Options, steps []string) {
	log := logger.With(zap.String("run", id))

	b := output.NewBroadcaster(s.console)
	if listener != nil {
		b.Attach(listener)
	}
	opts.OnProgress = func(ev orchestrator.ProgressEvent) {
		b.Send(output.Message{Step: ev.Step, Status: string(ev.Status)})
	}

	ok, err := s.exec.Execute(s.ctx, b, opts, steps...)
	if err != nil {
		b.Send(output.Message{Error: err.Error()})
	}
	if listener != nil && b.Listener() == nil {
		log.Warn("live listener dropped during run")
	}

	finished := time.Now().UTC()
	s.release(id)
	_ = s.runs.Update(id, func(r *Run) {
		switch {
		case err != nil:
			r.Status = RunError
			r.Error = err.Error()
		case ok:
			r.Status = RunSuccess
		default:
			r.Status = RunFailure
		}
		r.FinishedAt = &finished
	})
	log.Info("run finished", zap.Bool("success", ok), zap.Error(err))

	b.Send(output.ResultMessage(ok))
}

func (s *Server) handleListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.runs.List(), "connected": s.Connected()})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}
