// Command educube runs the ground station: it talks to an EduCube over a
// serial line (or a simulated one), serves operator consoles over
// WebSocket, and optionally archives telemetry to TimescaleDB and relays it
// over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/educube/groundstation/internal/archive"
	"github.com/educube/groundstation/internal/config"
	"github.com/educube/groundstation/internal/database"
	"github.com/educube/groundstation/internal/hub"
	"github.com/educube/groundstation/internal/link"
	"github.com/educube/groundstation/internal/logging"
	"github.com/educube/groundstation/internal/poller"
	"github.com/educube/groundstation/internal/relay"
	"github.com/educube/groundstation/internal/station"
	"github.com/educube/groundstation/internal/telemetry"
	"github.com/educube/groundstation/internal/version"
)

const (
	shutdownTimeout = 30 * time.Second
	statsInterval   = time.Minute
)

var errSerialLost = errors.New("serial link lost")

// component is anything with the Start/Stop lifecycle.
type component struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	serial := flag.String("serial", "", "serial device, overrides serial.port")
	baud := flag.Int("baud", 0, "baud rate, overrides serial.baud")
	board := flag.String("board", "", "board the cable is plugged into, overrides serial.board")
	port := flag.Int("port", 0, "web port, overrides web.port")
	fake := flag.Bool("fake", false, "simulate an EduCube instead of opening a serial device")
	showVersion := flag.Bool("version", false, "print version and exit")
	var verbose logging.Verbosity
	flag.Var(&verbose, "v", "verbosity; repeat for more (-v warn, -v -v info, -v -v -v debug)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial":
			cfg.Serial.Port = *serial
		case "baud":
			cfg.Serial.Baud = *baud
		case "board":
			cfg.Serial.Board = *board
			cfg.Telemetry.Boards = []string{*board}
		case "port":
			cfg.Web.Port = *port
		case "fake":
			cfg.Serial.Fake = *fake
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	if verbose > 0 {
		level = logging.VerbosityLevel(int(verbose))
	}
	logger, logCloser := logging.New(logging.Options{
		Level:      level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting ground station", version.Attr(), "config", *configPath, "instance_id", cfg.Instance.ID)

	if err := run(cfg, logger); err != nil {
		logger.Error("ground station failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("ground station stopped")
}

func loadConfig(path string) (*config.StationConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWithDefaults(path)
}

func run(cfg *config.StationConfig, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sinks start first and stop last so records in flight at shutdown
	// still reach them.
	var (
		components []component
		publishers []station.Publisher
		checks     = map[string]hub.Check{}
	)

	if cfg.Archive.Enabled {
		db := cfg.Database.Timescale
		logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

		pool, err := database.Open(ctx, db)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected")

		w := archive.NewWriter(archive.Config{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, pool, logger.With("component", "archive"))
		publishers = append(publishers, w)
		checks["archive"] = w.Healthy
		checks["timescaledb"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		}
		components = append(components, component{"archive", w.Start, w.Stop})
	}

	port, kind, err := openPort(cfg.Serial)
	if err != nil {
		return err
	}

	var transcript *link.Transcript
	if !cfg.Serial.Transcript.Disabled {
		transcript = link.OpenTranscript(link.TranscriptConfig{
			Dir:        cfg.Serial.Transcript.Dir,
			MaxSizeMB:  cfg.Serial.Transcript.MaxSizeMB,
			MaxBackups: cfg.Serial.Transcript.MaxBackups,
			Compress:   cfg.Serial.Transcript.Compress,
		}, kind, time.Now())
	}

	linkCfg := link.DefaultConfig()
	linkCfg.TxQueueSize = cfg.Serial.TxQueueSize
	lnk := link.New(linkCfg, port, transcript, logger.With("component", "link", "device", cfg.Serial.Port, "board", cfg.Serial.Board))

	decoder := telemetry.NewDecoder(telemetry.Options{GPSScale: cfg.Telemetry.GPSScale}, logger.With("component", "decoder"))
	st := station.New(lnk, decoder, nil, logger.With("component", "station"))

	if cfg.MQTT.Enabled {
		relayCfg := relay.DefaultConfig()
		relayCfg.Broker = cfg.MQTT.Broker
		relayCfg.ClientID = cfg.MQTT.ClientID
		relayCfg.Username = cfg.MQTT.Username
		relayCfg.Password = cfg.MQTT.Password
		relayCfg.TopicPrefix = cfg.MQTT.TopicPrefix
		relayCfg.QoS = byte(cfg.MQTT.QoS)
		relayCfg.ConnectTimeout = cfg.MQTT.ConnectTimeout

		r := relay.New(relayCfg, st, logger.With("component", "relay"))
		publishers = append(publishers, r)
		checks["mqtt"] = r.Healthy
		components = append(components, component{"relay", r.Start, r.Stop})
	}

	h := hub.New(hub.Config{
		Addr:         cfg.Web.ListenAddr(),
		WriteTimeout: cfg.Web.WriteTimeout,
		PingInterval: cfg.Web.PingInterval,
		PongTimeout:  2 * cfg.Web.PingInterval,
		ClientBuffer: cfg.Web.ClientBuffer,
		ReadLimit:    hub.DefaultConfig().ReadLimit,
	}, st, logger.With("component", "hub"))
	h.AddCheck("serial", func() error {
		if !lnk.Running() {
			return link.ErrLinkClosed
		}
		return nil
	})
	for name, check := range checks {
		h.AddCheck(name, check)
	}

	st.AddPublisher(h)
	for _, p := range publishers {
		st.AddPublisher(p)
	}

	components = append(components,
		component{"link", lnk.Start, lnk.Stop},
		component{"station", st.Start, st.Stop},
		component{"hub", h.Start, h.Stop},
	)

	if cfg.Telemetry.RequestInterval > 0 {
		p := poller.New(poller.Config{
			Boards:      cfg.Telemetry.Boards,
			Interval:    cfg.Telemetry.RequestInterval,
			Concurrency: len(cfg.Telemetry.Boards),
			Timeout:     cfg.Telemetry.RequestTimeout,
		}, st, logger.With("component", "poller"))
		components = append(components, component{"poller", p.Start, p.Stop})
	}

	started, err := startAll(ctx, components, logger)
	defer stopAll(started, logger)
	if err != nil {
		if !linkStarted(started) {
			lnk.Stop(context.Background())
		}
		return err
	}

	sdnotify(logger, daemon.SdNotifyReady)
	defer sdnotify(logger, daemon.SdNotifyStopping)

	logger.Info("ground station running",
		"instance_id", cfg.Instance.ID,
		"console_url", fmt.Sprintf("ws://%s/ws", h.Addr()),
		"health_url", fmt.Sprintf("http://%s/health", h.Addr()),
		"fake", cfg.Serial.Fake,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-st.Done():
			if ctx.Err() != nil {
				return nil
			}
			return errSerialLost
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				ls, ss, hs := lnk.Stats(), st.Stats(), h.Stats()
				logger.Info("stats",
					"lines", ls.LinesReceived,
					"oversize_lines", ls.OversizeLines,
					"records", ss.Records,
					"parse_errors", ss.ParseErrors,
					"commands", ss.Commands,
					"consoles", hs.Clients,
					"broadcasts", hs.Broadcasts,
				)
			}
		}
	})
	return g.Wait()
}

// sdnotify reports state to systemd when running as a notify service.
func sdnotify(logger *slog.Logger, state string) {
	ok, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if !ok {
		logger.Debug("not running under systemd", "state", state)
	}
}

func openPort(cfg config.SerialConfig) (link.Port, string, error) {
	if cfg.Fake {
		return link.NewFakePort(nil), "fake", nil
	}
	p, err := link.OpenSerial(cfg.Port, cfg.Baud)
	if err != nil {
		return nil, "", fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	return p, "serial", nil
}

// startAll starts components in order and returns those that started.
func startAll(ctx context.Context, components []component, logger *slog.Logger) ([]component, error) {
	started := make([]component, 0, len(components))
	for _, c := range components {
		if err := c.start(ctx); err != nil {
			return started, fmt.Errorf("start %s: %w", c.name, err)
		}
		logger.Debug("component started", "component", c.name)
		started = append(started, c)
	}
	return started, nil
}

func linkStarted(started []component) bool {
	for _, c := range started {
		if c.name == "link" {
			return true
		}
	}
	return false
}

// stopAll stops components in reverse start order within one shutdown
// deadline.
func stopAll(started []component, logger *slog.Logger) {
	if len(started) == 0 {
		return
	}
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(started) - 1; i >= 0; i-- {
		c := started[i]
		if err := c.stop(ctx); err != nil {
			logger.Warn("component stop failed", "component", c.name, "error", err)
		}
	}
}
