package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/telemetry"
)

// Hub fans telemetry out to connected consoles and forwards their commands
// to the station.
type Hub struct {
	cfg      Config
	station  Station
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[string]*client
	checks   map[string]Check
	server   *http.Server
	listener net.Listener
	started  bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	joined        atomic.Int64
	broadcasts    atomic.Int64
	dropped       atomic.Int64
	commands      atomic.Int64
	commandErrors atomic.Int64
	badMessages   atomic.Int64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// New creates a Hub serving st.
func New(cfg Config, st Station, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}

	return &Hub{
		cfg:     cfg,
		station: st,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Consoles are served from anywhere on the lab network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		checks:  make(map[string]Check),
	}
}

// AddCheck registers a health check reported by /health.
func (h *Hub) AddCheck(name string, check Check) {
	h.mu.Lock()
	h.checks[name] = check
	h.mu.Unlock()
}

// Handler returns the hub's HTTP routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/telemetry", h.handleTelemetry)
	return mux
}

// Start listens on the configured address and serves until Stop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if h.started {
		return ErrHubStarted
	}

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.cfg.Addr, err)
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.listener = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return h.ctx },
	}
	h.started = true

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("web server failed", "error", err)
		}
	}()

	h.logger.Info("hub started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the address the hub is listening on, or "" before Start.
func (h *Hub) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop shuts down the server and disconnects every console.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	server := h.server
	for _, c := range h.clients {
		c.close()
	}
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}

	var shutdownErr error
	if server != nil {
		shutdownErr = server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub stopped")
		return shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish broadcasts rec to every console. It never blocks: a console whose
// queue is full is disconnected.
func (h *Hub) Publish(rec telemetry.Record) {
	frame, err := protocol.Encode(protocol.MsgTelemetry, rec)
	if err != nil {
		h.logger.Error("failed to encode telemetry", "board", rec.Board, "error", err)
		return
	}
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcasts.Add(1)
	for _, c := range h.clients {
		if err := h.enqueue(c, frame); err != nil {
			h.logger.Warn("dropping slow console", "client", c.id, "error", err)
		}
	}
}

func (h *Hub) enqueue(c *client, frame []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.close()
		h.dropped.Add(1)
		return ErrSlowClient
	}
}

// Stats returns current statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()

	return Stats{
		Clients:        clients,
		Joined:         h.joined.Load(),
		Broadcasts:     h.broadcasts.Load(),
		DroppedClients: h.dropped.Load(),
		Commands:       h.commands.Load(),
		CommandErrors:  h.commandErrors.Load(),
		BadMessages:    h.badMessages.Load(),
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.ClientBuffer),
		done: make(chan struct{}),
	}
	logger := h.logger.With("client", c.id, "remote", r.RemoteAddr)

	if err := h.register(c); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		conn.Close()
		return
	}
	defer h.wg.Done()
	defer h.unregister(c)

	logger.Info("console connected")

	go h.writeLoop(c, logger)
	h.readLoop(r.Context(), c, logger)

	logger.Info("console disconnected")
}

// register adds c and queues the current snapshot under the write lock so
// that no broadcast can slip in ahead of an older snapshot record.
func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}

	h.clients[c.id] = c
	h.joined.Add(1)
	// One for the read side, one for the write loop.
	h.wg.Add(2)

	for _, rec := range h.station.Latest() {
		frame, err := protocol.Encode(protocol.MsgTelemetry, rec)
		if err != nil {
			h.logger.Error("failed to encode telemetry", "board", rec.Board, "error", err)
			continue
		}
		if err := h.enqueue(c, frame); err != nil {
			break
		}
	}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) writeLoop(c *client, logger *slog.Logger) {
	defer h.wg.Done()
	defer c.conn.Close()

	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.cfg.WriteTimeout))
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("console write failed", "error", err)
				c.close()
				return
			}

		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				logger.Debug("console ping failed", "error", err)
				c.close()
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client, logger *slog.Logger) {
	c.conn.SetReadLimit(h.cfg.ReadLimit)
	if h.cfg.PingInterval > 0 {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("console read failed", "error", err)
			}
			return
		}
		h.handleMessage(ctx, data, logger)
	}
}

func (h *Hub) handleMessage(ctx context.Context, data []byte, logger *slog.Logger) {
	env, err := protocol.Decode(data)
	if err != nil {
		h.badMessages.Add(1)
		logger.Warn("dropping undecodable message", "error", err)
		return
	}

	switch env.MsgType {
	case protocol.MsgCommand:
		req, err := protocol.DecodeCommand(env)
		if err != nil {
			h.badMessages.Add(1)
			logger.Warn("dropping malformed command", "error", err)
			return
		}
		h.commands.Add(1)
		if err := h.station.HandleCommand(ctx, req); err != nil {
			h.commandErrors.Add(1)
			logger.Warn("command rejected",
				"command", req.Command,
				"board", req.Board,
				"error", err,
			)
		}

	case protocol.MsgTelemetry:
		logger.Debug("ignoring telemetry envelope from console")

	default:
		h.badMessages.Add(1)
		logger.Warn("dropping message with unknown type", "msgtype", env.MsgType)
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make(map[string]Check, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	clients := len(h.clients)
	h.mu.RUnlock()

	resp := Health{Status: "ok", Clients: clients, Checks: make(map[string]string, len(checks))}
	for name, check := range checks {
		if err := check(); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleTelemetry serves the latest record per board. ?since=<epoch ms>
// limits the response to records received after that time.
func (h *Hub) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	records := h.station.Latest()

	if s := r.URL.Query().Get("since"); s != "" {
		since, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		filtered := records[:0]
		for _, rec := range records {
			if rec.Time > since {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if records == nil {
		records = []telemetry.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
