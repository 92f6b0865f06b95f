// Package web serves the browser rendition of the prompt manager: an
// embedded single page, a JSON API over the session controller and an SSE
// transcript stream.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/observability"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/session"
)

//go:embed static
var staticFS embed.FS

// maxBody caps request bodies, imports included.
const maxBody = 4 << 20

// Config holds server configuration.
type Config struct {
	ListenAddr string
	// KeepAlive is the SSE ping interval.
	KeepAlive time.Duration
}

// DefaultConfig returns the local-only defaults.
func DefaultConfig() Config {
	return Config{ListenAddr: "127.0.0.1:8787", KeepAlive: 30 * time.Second}
}

// Server is the web UI HTTP server. The controller it serves must have been
// built with the server's Hub as Sink and Inputs as Prompter.
type Server struct {
	cfg     Config
	ctrl    *session.Controller
	hub     *Hub
	health  *Health
	metrics *observability.PromptMetrics
	logger  *zap.Logger
	now     func() time.Time
	server  *http.Server

	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

// NewServer wires the routes. metrics may be nil.
func NewServer(cfg Config, ctrl *session.Controller, hub *Hub, metrics *observability.PromptMetrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultConfig().KeepAlive
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		hub:       hub,
		health:    NewHealth(),
		metrics:   metrics,
		logger:    logger.Named("web"),
		now:       time.Now,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	s.health.RegisterCheck("prompts", PromptsChecker(ctrl))
	s.health.RegisterCheck("credential", CredentialChecker(ctrl))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/prompts", s.handleAddPrompt)
	mux.HandleFunc("DELETE /api/prompts", s.handleDeletePrompt)
	mux.HandleFunc("GET /api/prompts/export", s.handleExport)
	mux.HandleFunc("POST /api/prompts/import", s.handleImport)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleSetSettings)
	mux.HandleFunc("DELETE /api/settings", s.handleClearSettings)
	mux.HandleFunc("GET /api/chain", s.handleGetChain)
	mux.HandleFunc("PUT /api/chain", s.handleSetChain)
	mux.HandleFunc("GET /api/conversation", s.handleConversation)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/health", s.health.handle)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.HandleFunc("GET /", s.handleStatic)

	s.server = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.loggingMiddleware(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: /api/events streams for the life of the page.
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.cfg.ListenAddr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server error: %w", err)
	}
	return nil
}

// Stop shuts the listener down, cancels any in-flight run and waits for it.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping web server")
	err := s.server.Shutdown(ctx)
	s.cancelRun()
	s.runs.Wait()
	return err
}

type promptView struct {
	Text     string `json:"text"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	selected := s.ctrl.Selected()
	list := s.ctrl.Prompts().Search(r.URL.Query().Get("q"))
	out := make([]promptView, 0, len(list))
	for _, p := range list {
		out = append(out, promptView{Text: p, Label: prompts.Label(p), Selected: p == selected})
	}
	writeJSON(w, http.StatusOK, out)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddPrompt(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.AddPrompt(r.Context(), req.Text); err != nil {
		s.writeError(w, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	writeJSON(w, http.StatusCreated, promptView{Text: text, Label: prompts.Label(text)})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	removed, err := s.ctrl.DeletePrompt(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "prompt not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", prompts.ExportFilename(now)))
	if err := s.ctrl.Prompts().WriteExport(w, now); err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	added, err := s.ctrl.Prompts().Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "total": s.ctrl.Prompts().Len()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.SelectPrompt(req.Text); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"selected": req.Text})
}

type settingsView struct {
	APIKey string `json:"api_key"`
	Source string `json:"source,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	masked, source, err := s.ctrl.APIKey(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsView{APIKey: masked, Source: source})
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "api_key is required"})
		return
	}
	if err := s.ctrl.SetAPIKey(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetSettings(w, r)
}

func (s *Server) handleClearSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ClearAPIKey(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chainBody struct {
	Items []chain.Item `json:"items"`
}

func (s *Server) handleGetChain(w http.ResponseWriter, _ *http.Request) {
	items := s.ctrl.Chain().Items()
	if items == nil {
		items = []chain.Item{}
	}
	writeJSON(w, http.StatusOK, chainBody{Items: items})
}

func (s *Server) handleSetChain(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.Busy() {
		s.writeError(w, session.ErrBusy)
		return
	}
	var req chainBody
	if !s.decode(w, r, &req) {
		return
	}
	for i := range req.Items {
		if req.Items[i].ID == "" {
			req.Items[i].ID = uuid.NewString()
		}
		for j := range req.Items[i].Mappings {
			req.Items[i].Mappings[j].Normalize()
		}
	}
	if err := s.ctrl.Chain().Replace(req.Items); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetChain(w, r)
}

func (s *Server) handleConversation(w http.ResponseWriter, _ *http.Request) {
	msgs := s.ctrl.Messages()
	if msgs == nil {
		msgs = []llm.Message{}
	}
	writeJSON(w, http.StatusOK, struct {
		Selected string        `json:"selected"`
		Busy     bool          `json:"busy"`
		Messages []llm.Message `json:"messages"`
	}{s.ctrl.Selected(), s.ctrl.Busy(), msgs})
}

type runRequest struct {
	Input string `json:"input"`
	// Inputs answers manual chain variables by name.
	Inputs map[string]string `json:"inputs,omitempty"`
	// ChainOnly runs the chain seeded with Input, skipping the main prompt.
	ChainOnly bool `json:"chain_only,omitempty"`
}

// handleRun validates the request and starts the run in the background.
// Progress arrives on /api/events.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !s.decode(w, r, &req) {
		return
	}
	switch {
	case s.ctrl.Busy():
		s.writeError(w, session.ErrBusy)
		return
	case req.ChainOnly && s.ctrl.Chain().Len() == 0:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "the chain is empty"})
		return
	case !req.ChainOnly && strings.TrimSpace(req.Input) == "":
		s.writeError(w, session.ErrEmptyInput)
		return
	case !req.ChainOnly && s.ctrl.Selected() == "":
		s.writeError(w, session.ErrNoPrompt)
		return
	}

	ctx := WithInputs(s.runCtx, req.Inputs)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		var err error
		if req.ChainOnly {
			err = s.ctrl.RunChain(ctx, req.Input)
		} else {
			_, err = s.ctrl.Run(ctx, req.Input)
		}
		if err != nil && session.IsAlert(err) {
			// Alert-class errors never reach the transcript; surface them.
			s.hub.Emit(session.Event{Type: session.EventError, Timestamp: s.now(), Content: err.Error()})
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	client, err := NewClient(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	s.hub.Register(client)
	defer s.hub.Unregister(client)
	s.logger.Debug("SSE client connected", zap.Int("clients", s.hub.Clients()))

	data, _ := json.Marshal(map[string]any{"type": "connected", "timestamp": s.now()})
	client.send(data)

	go client.KeepAlive(s.cfg.KeepAlive)

	<-r.Context().Done()
	s.logger.Debug("SSE client disconnected")
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	staticFiles, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Error("failed to access static files", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.FileServer(http.FS(staticFiles)).ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, session.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoPrompt),
		errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, prompts.ErrEmptyPrompt),
		errors.Is(err, chain.ErrInvalidStepRef):
		status = http.StatusBadRequest
	case errors.Is(err, prompts.ErrInvalidFormat):
		status = http.StatusBadRequest
		msg = "Invalid file format: " + msg
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
