package config

import "time"

// StationConfig is the root configuration for a ground station.
type StationConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Serial    SerialConfig    `yaml:"serial"`
	Web       WebConfig       `yaml:"web"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Database  DatabaseConfig  `yaml:"database"`
	Archive   ArchiveConfig   `yaml:"archive"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
	Console   ConsoleConfig   `yaml:"console"`
}

// InstanceConfig identifies this ground station.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SerialConfig holds the satellite link settings.
type SerialConfig struct {
	Port        string           `yaml:"port"`
	Baud        int              `yaml:"baud"`
	Board       string           `yaml:"board"` // Board the cable is plugged into
	Fake        bool             `yaml:"fake"`  // Simulate an EduCube instead of opening Port
	TxQueueSize int              `yaml:"tx_queue_size"`
	Transcript  TranscriptConfig `yaml:"transcript"`
}

// TranscriptConfig holds raw RX/TX transcript settings.
type TranscriptConfig struct {
	Disabled   bool   `yaml:"disabled"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// WebConfig holds the console WebSocket server settings.
type WebConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	ClientBuffer int           `yaml:"client_buffer"`
}

// TelemetryConfig holds decoding and request polling settings.
type TelemetryConfig struct {
	GPSScale        float64       `yaml:"gps_scale"`
	RequestInterval time.Duration `yaml:"request_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Boards          []string      `yaml:"boards"`
}

// DatabaseConfig holds the TimescaleDB connection for archived telemetry.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ArchiveConfig holds batch writer settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MQTTConfig holds the broker relay settings.
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ConsoleConfig holds operator console settings.
type ConsoleConfig struct {
	Address          string        `yaml:"address"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
}
