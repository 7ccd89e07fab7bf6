package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/educube/groundstation/internal/telemetry"
)

// Validate checks that all required fields are set and values are valid.
func (c *StationConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !c.Serial.Fake && c.Serial.Port == "" {
		return errors.New("serial.port is required unless serial.fake is set")
	}
	if c.Serial.Baud < 1 {
		return errors.New("serial.baud must be >= 1")
	}
	if !telemetry.KnownBoard(c.Serial.Board) {
		return fmt.Errorf("serial.board %q is not one of %s", c.Serial.Board, strings.Join(telemetry.Boards, ", "))
	}
	if c.Serial.TxQueueSize < 1 {
		return errors.New("serial.tx_queue_size must be >= 1")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535, got %d", c.Web.Port)
	}
	if c.Web.ClientBuffer < 1 {
		return errors.New("web.client_buffer must be >= 1")
	}

	if c.Telemetry.GPSScale <= 0 {
		return errors.New("telemetry.gps_scale must be > 0")
	}
	if c.Telemetry.RequestInterval < 0 {
		return errors.New("telemetry.request_interval must be >= 0")
	}
	for _, b := range c.Telemetry.Boards {
		if !telemetry.KnownBoard(b) {
			return fmt.Errorf("telemetry.boards: unknown board %q", b)
		}
	}

	if c.Archive.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
