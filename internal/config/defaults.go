package config

import (
	"net"
	"strconv"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultInstanceID       = "educube"
	DefaultBaud             = 9600
	DefaultBoard            = "CDH"
	DefaultTxQueueSize      = 64
	DefaultTranscriptDir    = "."
	DefaultTranscriptSizeMB = 100
	DefaultWebPort          = 18888
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultClientBuffer     = 64
	DefaultGPSScale         = 1e7
	DefaultRequestInterval  = 5 * time.Second
	DefaultRequestTimeout   = 2 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultMQTTBroker       = "tcp://localhost:1883"
	DefaultMQTTTopicPrefix  = "educube"
	DefaultMQTTQoS          = 1
	DefaultMQTTTimeout      = 10 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultLogSizeMB        = 50
	DefaultLogBackups       = 5
	DefaultConsoleAddress   = "ws://localhost:18888/ws"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultRefreshInterval  = 5 * time.Second
)

// DefaultBoards are polled for telemetry. The CDH forwards every board.
var DefaultBoards = []string{"CDH"}

func (c *StationConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Serial defaults
	if c.Serial.Baud == 0 {
		c.Serial.Baud = DefaultBaud
	}
	if c.Serial.Board == "" {
		c.Serial.Board = DefaultBoard
	}
	if c.Serial.TxQueueSize == 0 {
		c.Serial.TxQueueSize = DefaultTxQueueSize
	}
	if c.Serial.Transcript.Dir == "" {
		c.Serial.Transcript.Dir = DefaultTranscriptDir
	}
	if c.Serial.Transcript.MaxSizeMB == 0 {
		c.Serial.Transcript.MaxSizeMB = DefaultTranscriptSizeMB
	}

	// Web defaults
	if c.Web.Port == 0 {
		c.Web.Port = DefaultWebPort
	}
	if c.Web.WriteTimeout == 0 {
		c.Web.WriteTimeout = DefaultWriteTimeout
	}
	if c.Web.PingInterval == 0 {
		c.Web.PingInterval = DefaultPingInterval
	}
	if c.Web.ClientBuffer == 0 {
		c.Web.ClientBuffer = DefaultClientBuffer
	}

	// Telemetry defaults
	if c.Telemetry.GPSScale == 0 {
		c.Telemetry.GPSScale = DefaultGPSScale
	}
	if c.Telemetry.RequestInterval == 0 {
		c.Telemetry.RequestInterval = DefaultRequestInterval
	}
	if c.Telemetry.RequestTimeout == 0 {
		c.Telemetry.RequestTimeout = DefaultRequestTimeout
	}
	if len(c.Telemetry.Boards) == 0 {
		c.Telemetry.Boards = append([]string(nil), DefaultBoards...)
	}

	applyDBDefaults(&c.Database.Timescale)

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}

	// MQTT defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultMQTTBroker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Instance.ID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = DefaultMQTTQoS
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = DefaultMQTTTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogBackups
	}

	// Console defaults
	if c.Console.Address == "" {
		c.Console.Address = DefaultConsoleAddress
	}
	if c.Console.HandshakeTimeout == 0 {
		c.Console.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Console.WriteTimeout == 0 {
		c.Console.WriteTimeout = DefaultWriteTimeout
	}
	if c.Console.RefreshInterval == 0 {
		c.Console.RefreshInterval = DefaultRefreshInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// ListenAddr returns the host:port the web server binds.
func (w WebConfig) ListenAddr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}
