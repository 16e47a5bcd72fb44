package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"presence-room/internal/net/proto"
	"presence-room/internal/observability"
	"presence-room/internal/sim"
	"presence-room/internal/telemetry"
	"presence-room/internal/world"
	"presence-room/logging"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Environment overrides applied after the file is read.
const (
	EnvRelayURL = "ROOM_RELAY_URL"
	EnvPlayerID = "ROOM_PLAYER_ID"
	EnvLogLevel = "ROOM_LOG_LEVEL"
	EnvPprof    = "ROOM_ENABLE_PPROF"
)

const defaultRelayURL = "ws://127.0.0.1:8080/ws"

// Config is the full process configuration for the client, relay and replay
// commands.
type Config struct {
	PlayerID   string              `yaml:"player_id"`
	PlayerName string              `yaml:"player_name"`
	Relay      RelayConfig         `yaml:"relay"`
	Session    SessionConfig       `yaml:"session"`
	World      world.Config        `yaml:"world"`
	Wander     WanderConfig        `yaml:"wander"`
	Journal    JournalConfig       `yaml:"journal"`
	Logging    logging.Config      `yaml:"logging"`
	Log        telemetry.ZapConfig `yaml:"log"`
}

// RelayConfig locates the presence relay and, for the relay command, the
// address it listens on.
type RelayConfig struct {
	URL         string        `yaml:"url"`
	Listen      string        `yaml:"listen"`
	Channel     string        `yaml:"channel"`
	Codec       string        `yaml:"codec"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	SendBacklog int           `yaml:"send_backlog"`

	Observability observability.Config `yaml:"observability"`
}

// SessionConfig mirrors sim.Config minus the world layout.
type SessionConfig struct {
	TickRate                 int           `yaml:"tick_rate"`
	CatchupMaxTicks          int           `yaml:"catchup_max_ticks"`
	StopGraceDelay           time.Duration `yaml:"stop_grace_delay"`
	SyncInterval             time.Duration `yaml:"sync_interval"`
	InboxCapacity            int           `yaml:"inbox_capacity"`
	DisableRemotePathfinding bool          `yaml:"disable_remote_pathfinding"`
}

// WanderConfig drives the headless client's random walk.
type WanderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Seed     uint64        `yaml:"seed"`
}

// JournalConfig selects where session events are recorded. An empty path
// disables recording.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration that runs a client against a relay on
// localhost. The player id is left empty and filled in by Normalize.
func Default() Config {
	session := sim.DefaultConfig()
	return Config{
		Relay: RelayConfig{
			URL:         defaultRelayURL,
			Listen:      ":8080",
			Channel:     proto.DefaultChannel,
			Codec:       proto.CodecJSON,
			DialTimeout: 5 * time.Second,
			SendBacklog: 64,
		},
		Session: SessionConfig{
			TickRate:        session.TickRate,
			CatchupMaxTicks: session.CatchupMaxTicks,
			StopGraceDelay:  session.StopGraceDelay,
			SyncInterval:    session.SyncInterval,
			InboxCapacity:   session.InboxCapacity,
		},
		World: session.World,
		Wander: WanderConfig{
			Interval: 3 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		Log:     telemetry.DefaultZapConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path yields the defaults.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return Config{}, err
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRelayURL); ok && strings.TrimSpace(v) != "" {
		c.Relay.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPlayerID); ok && strings.TrimSpace(v) != "" {
		c.PlayerID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		level := strings.ToLower(strings.TrimSpace(v))
		c.Logging.Level = level
		c.Log.Level = level
	}
	if v, ok := lookup(EnvPprof); ok && strings.TrimSpace(v) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvPprof, v, err)
		}
		c.Relay.Observability.EnablePprof = enabled
	}
	return nil
}

// Normalize fills zero values with defaults and derives the player id.
func (c *Config) Normalize() {
	def := Default()
	c.PlayerID = strings.TrimSpace(c.PlayerID)
	if c.PlayerID == "" {
		c.PlayerID = uuid.NewString()
	}
	if c.Relay.Channel == "" {
		c.Relay.Channel = def.Relay.Channel
	}
	if c.Relay.Codec == "" {
		c.Relay.Codec = def.Relay.Codec
	}
	if c.Relay.DialTimeout <= 0 {
		c.Relay.DialTimeout = def.Relay.DialTimeout
	}
	if c.Relay.SendBacklog <= 0 {
		c.Relay.SendBacklog = def.Relay.SendBacklog
	}
	if c.Session.TickRate <= 0 {
		c.Session.TickRate = def.Session.TickRate
	}
	if c.Session.CatchupMaxTicks <= 0 {
		c.Session.CatchupMaxTicks = def.Session.CatchupMaxTicks
	}
	if c.Session.InboxCapacity <= 0 {
		c.Session.InboxCapacity = def.Session.InboxCapacity
	}
	if c.Wander.Interval <= 0 {
		c.Wander.Interval = def.Wander.Interval
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if severity, err := logging.ParseSeverity(c.Logging.Level); err == nil {
		c.Logging.MinimumSeverity = severity
	}
	c.World = c.World.Normalized()
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c Config) Validate() error {
	if c.PlayerID == "" {
		return fmt.Errorf("%w: player_id is empty", ErrInvalid)
	}
	if _, err := proto.NewCodec(c.Relay.Codec); err != nil {
		return fmt.Errorf("%w: relay.codec: %v", ErrInvalid, err)
	}
	if c.Session.StopGraceDelay < 0 {
		return fmt.Errorf("%w: session.stop_grace_delay must be >= 0", ErrInvalid)
	}
	if c.Session.SyncInterval < 0 {
		return fmt.Errorf("%w: session.sync_interval must be >= 0", ErrInvalid)
	}
	if _, err := logging.ParseSeverity(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	for _, name := range c.Logging.EnabledSinks {
		switch name {
		case logging.SinkConsole, logging.SinkJSON, logging.SinkZap, logging.SinkMemory:
		default:
			return fmt.Errorf("%w: logging.sinks: unknown sink %q", ErrInvalid, name)
		}
	}
	if err := c.World.Validate(); err != nil {
		return fmt.Errorf("%w: world: %v", ErrInvalid, err)
	}
	return nil
}

// SimConfig returns the session settings for sim.NewSession.
func (c Config) SimConfig() sim.Config {
	return sim.Config{
		World:                    c.World,
		StopGraceDelay:           c.Session.StopGraceDelay,
		SyncInterval:             c.Session.SyncInterval,
		InboxCapacity:            c.Session.InboxCapacity,
		DisableRemotePathfinding: c.Session.DisableRemotePathfinding,
		TickRate:                 c.Session.TickRate,
		CatchupMaxTicks:          c.Session.CatchupMaxTicks,
	}
}

// Meta is what the local player advertises to the room.
func (c Config) Meta() proto.MemberMeta {
	return proto.MemberMeta{Name: c.PlayerName, WorldDigest: c.World.Digest()}
}
