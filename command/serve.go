package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tomatool/stepindex/progress"
	"github.com/tomatool/stepindex/provider"
	"github.com/tomatool/stepindex/stepdef"
)

var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "Serve the step definitions of a Go module over HTTP, pushing updates as sources change",
	ArgsUsage: "[path]",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Value: 0,
			Usage: "Port to listen on (default: random available port)",
		},
	},
	Action: runServe,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSMessage is pushed to websocket clients.
type WSMessage struct {
	Type         string               `json:"type"`
	Steps        []stepdef.Definition `json:"steps,omitempty"`
	ChangedFiles []string             `json:"changedFiles,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Server keeps the latest step definitions of a module and serves them.
type Server struct {
	finder finder
	path   string

	mu     sync.RWMutex
	steps  []stepdef.Definition
	err    error
	loaded bool

	// clientsMux also serializes writes, connections allow one writer.
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
}

func newServer(f finder, path string) *Server {
	return &Server{
		finder:  f,
		path:    path,
		clients: make(map[*websocket.Conn]bool),
	}
}

func runServe(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "."
	}

	ctx := c.Context
	server := newServer(provider.New(), path)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", c.Int("port")))
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	httpServer := &http.Server{
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watch(ctx, path, func(files []string) {
			server.update(ctx, files)
		})
	}()

	go func() {
		select {
		case <-ctx.Done():
		case err := <-watchErr:
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("watching sources failed")
			}
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	addr := listener.Addr().(*net.TCPAddr)
	fmt.Fprintf(c.App.Writer, "%s stepindex serving %s at http://localhost:%d\n", summaryStyle.Render("●"), path, addr.Port)
	fmt.Fprintf(c.App.Writer, "%s Press Ctrl+C to stop\n\n", locationStyle.Render("●"))

	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/steps", s.handleSteps)
	mux.HandleFunc("/api/match", s.handleMatch)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// refresh finds the step definitions again and keeps the result.
func (s *Server) refresh(ctx context.Context) error {
	steps, err := s.finder.FindStepDefinitions(ctx, s.path, &progress.Log{Logger: log.Logger})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.err = err
	if err == nil {
		s.steps = steps
	}
	return err
}

func (s *Server) snapshot() ([]stepdef.Definition, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps, s.loaded, s.err
}

// update refreshes and pushes the outcome to every client.
func (s *Server) update(ctx context.Context, changedFiles []string) {
	msg := WSMessage{Type: "update"}
	if err := s.refresh(ctx); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("finding step definitions failed")
		msg.Type = "error"
		msg.Error = err.Error()
	} else {
		msg.Steps, _, _ = s.snapshot()
		msg.ChangedFiles = changedFiles
	}
	s.broadcast(msg)
}

func (s *Server) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("encoding websocket message failed")
		return
	}

	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("websocket write failed")
		}
	}
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	steps, ok := s.ready(w)
	if !ok {
		return
	}
	writeJSON(w, steps)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("step")
	if text == "" {
		http.Error(w, "missing step query parameter", http.StatusBadRequest)
		return
	}

	steps, ok := s.ready(w)
	if !ok {
		return
	}

	matches := stepdef.Matching(steps, text, r.URL.Query().Get("keyword"))
	if matches == nil {
		matches = []stepdef.Definition{}
	}
	writeJSON(w, matches)
}

// ready writes an error response and returns false until definitions
// have been found.
func (s *Server) ready(w http.ResponseWriter) ([]stepdef.Definition, bool) {
	steps, loaded, err := s.snapshot()
	switch {
	case !loaded:
		http.Error(w, "step definitions are being indexed", http.StatusServiceUnavailable)
		return nil, false
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if steps == nil {
		steps = []stepdef.Definition{}
	}
	return steps, true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	steps, _, serr := s.snapshot()
	msg := WSMessage{Type: "init", Steps: steps}
	if serr != nil {
		msg.Error = serr.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("encoding websocket message failed")
		return
	}

	s.clientsMux.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	if err == nil {
		s.clients[conn] = true
	}
	s.clientsMux.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.clientsMux.Lock()
		delete(s.clients, conn)
		s.clientsMux.Unlock()
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response failed")
	}
}
