package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/telemetry"
)

// Relay publishes records to MQTT and forwards broker commands to a handler.
type Relay struct {
	cfg     Config
	handler CommandHandler
	logger  *slog.Logger
	client  mqtt.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	published     atomic.Int64
	publishErrors atomic.Int64
	commandsIn    atomic.Int64
	commandErrors atomic.Int64
	connects      atomic.Int64
}

// New creates a Relay with a paho client that reconnects on its own.
func New(cfg Config, handler CommandHandler, logger *slog.Logger) *Relay {
	r := newRelay(cfg, handler, logger)
	r.client = mqtt.NewClient(r.clientOptions())
	return r
}

func newRelay(cfg Config, handler CommandHandler, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Broker == "" {
		cfg.Broker = def.Broker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = def.TopicPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}

	r := &Relay{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("broker", cfg.Broker),
	}
	// Lifetime of the relay. Stop, or the Start context, cancels it.
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

func (r *Relay) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(r.cfg.Broker).
		SetClientID(r.cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(r.cfg.KeepAlive).
		SetConnectTimeout(r.cfg.ConnectTimeout).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(r.cfg.RetryInterval).
		SetWill(StatusTopic(r.cfg.TopicPrefix), StatusOffline, r.cfg.QoS, true).
		SetOnConnectHandler(r.onConnect).
		SetConnectionLostHandler(r.onConnectionLost)

	if r.cfg.Username != "" {
		opts.SetUsername(r.cfg.Username)
		opts.SetPassword(r.cfg.Password)
	}
	return opts
}

// Start connects to the broker. An unreachable broker is not an error: the
// client keeps retrying in the background.
func (r *Relay) Start(ctx context.Context) error {
	context.AfterFunc(ctx, r.cancel)

	token := r.client.Connect()
	if !token.WaitTimeout(r.cfg.ConnectTimeout) {
		r.logger.Warn("mqtt broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		r.logger.Warn("mqtt connect failed, retrying in background", "error", err)
	}

	r.logger.Info("mqtt relay started",
		"client_id", r.cfg.ClientID,
		"prefix", r.cfg.TopicPrefix,
	)
	return nil
}

// Stop announces offline status and disconnects.
func (r *Relay) Stop(ctx context.Context) error {
	if r.client.IsConnectionOpen() {
		token := r.client.Publish(StatusTopic(r.cfg.TopicPrefix), r.cfg.QoS, true, StatusOffline)
		waitToken(ctx, token)
		waitToken(ctx, r.client.Unsubscribe(CommandTopic(r.cfg.TopicPrefix)))
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.client.Disconnect(250)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("mqtt relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends rec to its board topic without waiting for the broker.
func (r *Relay) Publish(rec telemetry.Record) {
	if r.ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		r.publishErrors.Add(1)
		r.logger.Error("failed to encode record", "board", rec.Board, "error", err)
		return
	}

	// wg.Add must not race Stop's Wait.
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	topic := TelemetryTopic(r.cfg.TopicPrefix, rec.Board)
	token := r.client.Publish(topic, r.cfg.QoS, false, payload)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-token.Done():
		case <-r.ctx.Done():
			return
		}
		if err := token.Error(); err != nil {
			r.publishErrors.Add(1)
			r.logger.Debug("mqtt publish failed", "topic", topic, "error", err)
			return
		}
		r.published.Add(1)
	}()
}

// Stats returns current statistics.
func (r *Relay) Stats() Stats {
	return Stats{
		Connected:     r.client.IsConnected(),
		Published:     r.published.Load(),
		PublishErrors: r.publishErrors.Load(),
		CommandsIn:    r.commandsIn.Load(),
		CommandErrors: r.commandErrors.Load(),
		Connects:      r.connects.Load(),
	}
}

// Healthy reports whether the broker connection is up.
func (r *Relay) Healthy() error {
	if !r.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

func (r *Relay) onConnect(c mqtt.Client) {
	r.connects.Add(1)
	r.logger.Info("mqtt connected")

	topic := CommandTopic(r.cfg.TopicPrefix)
	if token := c.Subscribe(topic, r.cfg.QoS, r.handleMessage); token.Wait() && token.Error() != nil {
		r.logger.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
		return
	}
	c.Publish(StatusTopic(r.cfg.TopicPrefix), r.cfg.QoS, true, StatusOnline)
}

func (r *Relay) onConnectionLost(_ mqtt.Client, err error) {
	r.logger.Warn("mqtt connection lost", "error", err)
}

func (r *Relay) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	defer msg.Ack()

	env, err := protocol.Decode(msg.Payload())
	if err != nil {
		r.commandErrors.Add(1)
		r.logger.Warn("dropping undecodable mqtt message", "topic", msg.Topic(), "error", err)
		return
	}
	req, err := protocol.DecodeCommand(env)
	if err != nil {
		r.commandErrors.Add(1)
		r.logger.Warn("dropping mqtt message", "topic", msg.Topic(), "error", err)
		return
	}

	r.commandsIn.Add(1)
	if err := r.handler.HandleCommand(r.ctx, req); err != nil {
		r.commandErrors.Add(1)
		r.logger.Warn("mqtt command rejected",
			"command", req.Command,
			"board", req.Board,
			"error", err,
		)
	}
}

func waitToken(ctx context.Context, token mqtt.Token) {
	select {
	case <-token.Done():
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}
