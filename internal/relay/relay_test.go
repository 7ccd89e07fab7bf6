package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/telemetry"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient is an in-memory mqtt.Client.
type mockClient struct {
	mu           sync.Mutex
	connected    bool
	pub          []published
	subs         map[string]mqtt.MessageHandler
	unsubscribed []string
	disconnected bool
	err          error
}

func newMockClient() *mockClient {
	return &mockClient{subs: make(map[string]mqtt.MessageHandler)}
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) IsConnectionOpen() bool { return m.IsConnected() }

func (m *mockClient) Connect() mqtt.Token {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return doneToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	m.connected = false
	m.disconnected = true
	m.mu.Unlock()
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	m.pub = append(m.pub, published{topic, qos, retained, b})
	return doneToken{m.err}
}

func (m *mockClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = handler
	return doneToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}

func (m *mockClient) Unsubscribe(topics ...string) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topics...)
	return doneToken{}
}

func (m *mockClient) AddRoute(string, mqtt.MessageHandler) { panic("not implemented") }

func (m *mockClient) OptionsReader() mqtt.ClientOptionsReader { panic("not implemented") }

func (m *mockClient) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.pub...)
}

func (m *mockClient) deliver(t *testing.T, topic string, payload []byte) *mockMessage {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.subs[topic]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("not subscribed to %s", topic)
	}
	msg := &mockMessage{topic: topic, payload: payload}
	handler(m, msg)
	return msg
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockMessage struct {
	topic   string
	payload []byte
	acked   bool
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              { m.acked = true }

type recordingHandler struct {
	mu   sync.Mutex
	reqs []protocol.CommandRequest
	err  error
}

func (h *recordingHandler) HandleCommand(_ context.Context, req protocol.CommandRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reqs = append(h.reqs, req)
	return h.err
}

func testRelay(h CommandHandler) (*Relay, *mockClient) {
	client := newMockClient()
	r := newRelay(DefaultConfig(), h, nil)
	r.client = client
	return r, client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{TelemetryTopic("educube", "EPS"), "educube/EPS/telemetry"},
		{TelemetryTopic("/lab/cube1/", "CDH"), "lab/cube1/CDH/telemetry"},
		{CommandTopic("educube"), "educube/command"},
		{CommandTopic(""), "command"},
		{StatusTopic("lab"), "lab/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestRelay_Publish(t *testing.T) {
	r, client := testRelay(&recordingHandler{})

	r.Publish(telemetry.Record{Board: "ADC", Type: "T", Telem: "WHL,40", Time: 1000})
	waitFor(t, "publish", func() bool { return r.Stats().Published == 1 })

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.topic != "educube/ADC/telemetry" || m.qos != 1 || m.retained {
		t.Errorf("message = %s qos=%d retained=%v", m.topic, m.qos, m.retained)
	}

	var rec telemetry.Record
	if err := json.Unmarshal(m.payload, &rec); err != nil {
		t.Fatalf("payload is not a record: %v", err)
	}
	if rec.Board != "ADC" || rec.Telem != "WHL,40" || rec.Time != 1000 {
		t.Errorf("record = %+v", rec)
	}
}

func TestRelay_PublishError(t *testing.T) {
	r, client := testRelay(&recordingHandler{})
	client.err = errors.New("not connected")

	r.Publish(telemetry.Record{Board: "EPS"})
	waitFor(t, "publish error", func() bool { return r.Stats().PublishErrors == 1 })

	if got := r.Stats().Published; got != 0 {
		t.Errorf("Published = %d, want 0", got)
	}
}

func TestRelay_Commands(t *testing.T) {
	h := &recordingHandler{}
	r, client := testRelay(h)

	r.onConnect(client)

	msgs := client.messages()
	if len(msgs) != 1 || msgs[0].topic != "educube/status" || string(msgs[0].payload) != StatusOnline || !msgs[0].retained {
		t.Errorf("status messages = %+v", msgs)
	}

	cmd, _ := protocol.EncodeCommand("PWR_OFF", "EPS", map[string]any{"command_id": "2"})
	msg := client.deliver(t, "educube/command", cmd)
	if !msg.acked {
		t.Error("message not acked")
	}
	client.deliver(t, "educube/command", []byte("{"))
	client.deliver(t, "educube/command", []byte(`{"msgtype":"telemetry","msgcontent":{}}`))

	h.mu.Lock()
	reqs := append([]protocol.CommandRequest(nil), h.reqs...)
	h.mu.Unlock()

	if len(reqs) != 1 {
		t.Fatalf("handled %d commands, want 1", len(reqs))
	}
	if id, _ := reqs[0].String("command_id"); reqs[0].Command != "PWR_OFF" || id != "2" {
		t.Errorf("request = %+v", reqs[0])
	}

	stats := r.Stats()
	if stats.CommandsIn != 1 || stats.CommandErrors != 2 || stats.Connects != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestRelay_CommandRejected(t *testing.T) {
	h := &recordingHandler{err: errors.New("invalid command")}
	r, client := testRelay(h)
	r.onConnect(client)

	cmd, _ := protocol.EncodeCommand("REACT", "ADC", map[string]any{"val": 900})
	client.deliver(t, "educube/command", cmd)

	if got := r.Stats().CommandErrors; got != 1 {
		t.Errorf("CommandErrors = %d, want 1", got)
	}
}

func TestRelay_StartStop(t *testing.T) {
	r, client := testRelay(&recordingHandler{})

	if err := r.Healthy(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Healthy() before Start = %v, want ErrNotConnected", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Healthy(); err != nil {
		t.Errorf("Healthy() after Start = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	msgs := client.messages()
	last := msgs[len(msgs)-1]
	if last.topic != "educube/status" || string(last.payload) != StatusOffline || !last.retained {
		t.Errorf("last message = %+v, want retained offline status", last)
	}
	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != "educube/command" {
		t.Errorf("unsubscribed = %v", client.unsubscribed)
	}
	if !client.disconnected {
		t.Error("client not disconnected")
	}

	// Records after Stop are dropped.
	r.Publish(telemetry.Record{Board: "CDH"})
	if got := len(client.messages()); got != len(msgs) {
		t.Errorf("published after Stop: %d messages, want %d", got, len(msgs))
	}
}

func TestRelay_PublishDuringStop(t *testing.T) {
	r, client := testRelay(&recordingHandler{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				r.Publish(telemetry.Record{Board: "EPS", Time: int64(i*1000 + j)})
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	wg.Wait()

	// Nothing reaches the client after Stop.
	stopped := len(client.messages())
	r.Publish(telemetry.Record{Board: "EPS"})
	if got := len(client.messages()); got != stopped {
		t.Errorf("published after Stop: %d messages, want %d", got, stopped)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = "ground"
	cfg.Password = "secret"
	r := newRelay(cfg, &recordingHandler{}, nil)

	opts := r.clientOptions()
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "educube" || opts.Username != "ground" {
		t.Errorf("ClientID = %q, Username = %q", opts.ClientID, opts.Username)
	}
	if !opts.WillEnabled || opts.WillTopic != "educube/status" || string(opts.WillPayload) != StatusOffline || !opts.WillRetained {
		t.Errorf("will = %v %q %q %v", opts.WillEnabled, opts.WillTopic, opts.WillPayload, opts.WillRetained)
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("expected auto reconnect and connect retry")
	}
}
