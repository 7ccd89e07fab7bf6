package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/store"
	"github.com/educube/groundstation/internal/telemetry"
)

// Channel is a console connection to the ground station.
type Channel struct {
	cfg      Config
	store    *store.Store
	decoder  *telemetry.Decoder
	renderer Renderer
	notifier Notifier
	logger   *slog.Logger

	// Current connection, nil when disconnected
	conn    *websocket.Conn
	done    chan struct{} // closed when conn is torn down
	address string

	// Lifetime of the channel
	stop        chan struct{}
	refreshOnce sync.Once
	wg          sync.WaitGroup

	// Write serialization
	writeMu sync.Mutex

	// State
	mu     sync.RWMutex
	closed bool
	stats  Stats
}

// telemetryContent is the msgcontent of a telemetry envelope. Any data the
// sender attached is ignored and rebuilt from Telem.
type telemetryContent struct {
	Board string  `json:"board"`
	Type  string  `json:"type"`
	Telem string  `json:"telem"`
	Time  float64 `json:"time"`
}

// New creates a Channel writing into st. A nil st gets a fresh store.
func New(cfg Config, st *store.Store, opts ...Option) *Channel {
	c := &Channel{
		cfg:   cfg,
		store: st,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.store == nil {
		c.store = store.New()
	}
	if c.decoder == nil {
		c.decoder = telemetry.NewDecoder(telemetry.DefaultOptions(), c.logger)
	}
	if c.renderer == nil {
		c.renderer = RendererFunc(func(telemetry.Record) {})
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(Notice) {})
	}

	return c
}

// Connect dials the ground station at address (ws://host:port/ws) and
// starts receiving. A failed dial is reported to the operator as a lost
// connection and returns an error wrapping protocol.ErrConnectionClosed.
func (c *Channel) Connect(ctx context.Context, address string) error {
	c.mu.RLock()
	closed, connected := c.closed, c.conn != nil
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if connected {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		c.logger.Warn("websocket dial failed", "address", address, "error", err)
		c.notifier.Notify(Notice{Message: "Connection to ground station lost", Type: NoticeError})
		return fmt.Errorf("%w: dial %s: %v", protocol.ErrConnectionClosed, address, err)
	}

	done := make(chan struct{})

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.done = done
	c.address = address
	c.stats.Connected = true
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.stats.LastFrameAt = time.Now()
		c.mu.Unlock()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	c.wg.Add(1)
	go c.readLoop(conn, done)

	if c.cfg.PingInterval > 0 {
		c.wg.Add(1)
		go c.heartbeatLoop(conn, done)
	}

	c.refreshOnce.Do(func() {
		if c.cfg.RefreshInterval > 0 {
			c.wg.Add(1)
			go c.refreshLoop()
		}
	})

	c.logger.Info("connected to ground station", "address", address)
	return nil
}

// Send transmits a command request. When the channel is not connected or
// the write fails, the operator is notified and the returned error wraps
// protocol.ErrSendFailure; the channel stays usable for later sends.
func (c *Channel) Send(command, board string, settings map[string]any) error {
	data, err := protocol.EncodeCommand(command, board, settings)
	if err != nil {
		return c.sendFailed(command, board, err)
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return c.sendFailed(command, board, ErrNotConnected)
	}

	c.writeMu.Lock()
	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return c.sendFailed(command, board, err)
	}

	c.mu.Lock()
	c.stats.CommandsSent++
	c.mu.Unlock()

	c.logger.Debug("command sent", "command", command, "board", board)
	c.notifier.Notify(Notice{
		Message: fmt.Sprintf("Command sent (C|%s|%s)", board, command),
		Type:    NoticeSuccess,
	})
	return nil
}

func (c *Channel) sendFailed(command, board string, err error) error {
	c.mu.Lock()
	c.stats.SendFailures++
	c.mu.Unlock()

	c.logger.Warn("command send failed", "command", command, "board", board, "error", err)
	c.notifier.Notify(Notice{Message: "Command failed", Type: NoticeError})
	return fmt.Errorf("%w: %v", protocol.ErrSendFailure, err)
}

// Refresh re-renders every record in the store.
func (c *Channel) Refresh() {
	for _, rec := range c.store.Snapshot() {
		c.renderer.Render(rec)
	}
}

// Close gracefully closes the connection and stops the refresh loop.
// The operator is not notified of a deliberate close.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, done := c.conn, c.done
	c.conn = nil
	c.stats.Connected = false
	c.mu.Unlock()

	close(c.stop)

	var err error
	if conn != nil {
		close(done)
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = conn.Close()
	}

	c.wg.Wait()
	return err
}

// IsConnected returns the current connection state.
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Store returns the telemetry store the channel writes into.
func (c *Channel) Store() *store.Store {
	return c.store
}

// Stats returns current statistics.
func (c *Channel) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// readLoop is the only writer to the store.
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Closed by us.
				return
			default:
			}
			c.connectionLost(conn, done, err)
			return
		}
		c.handleFrame(data)
	}
}

// connectionLost tears down conn after an unexpected read failure.
func (c *Channel) connectionLost(conn *websocket.Conn, done chan struct{}, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.stats.Connected = false
	address := c.address
	c.mu.Unlock()

	close(done)
	conn.Close()

	c.logger.Warn("websocket connection lost", "address", address, "error", err)
	c.notifier.Notify(Notice{Message: "Connection to ground station lost", Type: NoticeError})
}

// handleFrame decodes one frame and dispatches it by message type.
func (c *Channel) handleFrame(data []byte) {
	c.touch()

	env, err := protocol.Decode(data)
	if err != nil {
		c.decodeError(err)
		return
	}

	switch env.MsgType {
	case protocol.MsgTelemetry:
		c.applyTelemetry(env)
	case protocol.MsgCommand:
		c.logger.Debug("ignoring command envelope from ground station")
	default:
		c.mu.Lock()
		c.stats.UnknownTypes++
		c.mu.Unlock()
		c.logger.Warn("dropping envelope with unknown message type", "msgtype", env.MsgType)
	}
}

func (c *Channel) applyTelemetry(env protocol.Envelope) {
	var content telemetryContent
	if err := json.Unmarshal(env.MsgContent, &content); err != nil {
		c.decodeError(fmt.Errorf("%w: telemetry content: %v", protocol.ErrDecode, err))
		return
	}

	rec, err := c.decoder.Rebuild(telemetry.Record{
		Board: content.Board,
		Type:  content.Type,
		Telem: content.Telem,
		Time:  int64(content.Time),
	})
	if err != nil {
		c.decodeError(err)
		return
	}

	c.store.Put(rec)

	c.mu.Lock()
	c.stats.TelemetryApplied++
	c.mu.Unlock()

	c.renderer.Render(rec)
}

func (c *Channel) decodeError(err error) {
	c.mu.Lock()
	c.stats.DecodeErrors++
	c.mu.Unlock()
	c.logger.Warn("dropping undecodable frame", "error", err)
}

func (c *Channel) touch() {
	c.mu.Lock()
	c.stats.FramesReceived++
	c.stats.LastFrameAt = time.Now()
	c.mu.Unlock()
}

// heartbeatLoop keeps idle connections alive through proxies.
func (c *Channel) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// refreshLoop re-renders from the store independently of arrivals.
func (c *Channel) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Refresh()
		}
	}
}
