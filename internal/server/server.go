// Package server serves the history graph of a repository over HTTP and
// pushes changes to websocket clients as the repository changes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/history"
)

// A nil CheckOrigin rejects cross-origin upgrades.
var upgrader = websocket.Upgrader{}

type MessageType string

const (
	MessageTypeInfo   MessageType = "info"
	MessageTypeGraph  MessageType = "graph"
	MessageTypeStatus MessageType = "status"
)

type UpdateMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const writeTimeout = 10 * time.Second

// Config tunes a Server.
type Config struct {
	Addr string
	// Poll is the period of the fallback rescan; 0 disables it.
	Poll    time.Duration
	History history.Options
	Log     *slog.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg UpdateMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

type Server struct {
	path    string
	gitDir  string
	workDir string
	bare    bool
	cfg     Config
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshMu sync.Mutex
	mu        sync.RWMutex
	cached    *State
	encoded   map[MessageType][]byte

	clientsMu sync.RWMutex
	clients   map[string]*client
	broadcast chan UpdateMessage
}

func NewServer(repo *gitcore.Repository, cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		path:      repoRoot(repo),
		gitDir:    repo.GitDir(),
		workDir:   repo.WorkDir(),
		bare:      repo.IsBare(),
		cfg:       cfg,
		log:       log,
		encoded:   make(map[MessageType][]byte),
		clients:   make(map[string]*client),
		broadcast: make(chan UpdateMessage, 256),
	}
}

// Handler routes the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDump)
	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	return mux
}

// Watch loads the initial state and starts the background goroutines that
// keep it current: the file watcher, the poll loop and the broadcaster.
// They run until ctx is done or Close is called.
func (s *Server) Watch(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.Refresh(); err != nil {
		s.cancel()
		return err
	}

	if err := s.startWatcher(); err != nil {
		s.log.Warn("file watcher unavailable, relying on polling", "err", err)
	}
	s.wg.Add(1)
	go s.handleBroadcast()
	if s.cfg.Poll > 0 {
		s.wg.Add(1)
		go s.pollRepo()
	}
	return nil
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Watch(ctx); err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}
	go func() {
		<-s.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("serving history", "addr", s.cfg.Addr, "repository", s.path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the background goroutines and disconnects all clients.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.clientsMu.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()
}

// State returns the last collected state, nil before the first Refresh.
func (s *Server) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// handleWebSocket registers a client, sends it the current state and keeps
// reading until it goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Info("websocket client connected", "client", c.id, "clients", total)

	s.sendInitialState(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.removeClient(c)
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	total := len(s.clients)
	s.clientsMu.Unlock()
	c.conn.Close()
	if ok {
		s.log.Info("websocket client disconnected", "client", c.id, "clients", total)
	}
}

func (s *Server) sendInitialState(c *client) {
	state := s.State()
	if state == nil {
		return
	}
	messages := []UpdateMessage{
		{Type: string(MessageTypeInfo), Data: state.Info},
		{Type: string(MessageTypeGraph), Data: state.Graph},
		{Type: string(MessageTypeStatus), Data: state.Status},
	}
	for _, msg := range messages {
		if err := c.send(msg); err != nil {
			s.log.Warn("sending initial state failed", "client", c.id, "err", err)
			return
		}
	}
}

// handleBroadcast forwards queued updates to every client, dropping those
// that fail.
func (s *Server) handleBroadcast() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			s.clientsMu.RLock()
			targets := make([]*client, 0, len(s.clients))
			for _, c := range s.clients {
				targets = append(targets, c)
			}
			s.clientsMu.RUnlock()

			for _, c := range targets {
				if err := c.send(msg); err != nil {
					s.log.Warn("broadcast failed", "client", c.id, "err", err)
					s.removeClient(c)
				}
			}
		}
	}
}

func (s *Server) broadcastUpdate(msgType MessageType, data any) {
	select {
	case s.broadcast <- UpdateMessage{Type: string(msgType), Data: data}:
	default:
		s.log.Warn("broadcast channel full, dropping message", "type", msgType)
	}
}
