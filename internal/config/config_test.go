package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"presence-room/internal/world"
	"presence-room/logging"
)

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "room.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(nil))
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	if cfg.PlayerID == "" {
		t.Fatalf("expected a generated player id")
	}
	if cfg.Relay.URL != defaultRelayURL || cfg.Relay.Channel != "presence-3d-room" {
		t.Fatalf("expected default relay, got %+v", cfg.Relay)
	}
	if cfg.Session.StopGraceDelay != 100*time.Millisecond {
		t.Fatalf("expected 100ms grace delay, got %v", cfg.Session.StopGraceDelay)
	}
	if cfg.World.Digest() != world.DefaultConfig().Digest() {
		t.Fatalf("expected the default room layout")
	}

	other, err := LoadWithEnv("", envOf(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.PlayerID == cfg.PlayerID {
		t.Fatalf("expected distinct generated ids, got %q twice", cfg.PlayerID)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
player_id: alice
player_name: Alice
relay:
  codec: msgpack
  channel: lobby
session:
  stop_grace_delay: 250ms
  sync_interval: 2s
world:
  move_speed: 6
  diagonal: lenient
wander:
  enabled: true
logging:
  level: debug
  sinks: [console, zap]
journal:
  path: run.db
`)
	cfg, err := LoadWithEnv(path, envOf(nil))
	if err != nil {
		t.Fatalf("expected file to load, got %v", err)
	}
	if cfg.PlayerID != "alice" || cfg.PlayerName != "Alice" {
		t.Fatalf("expected alice identity, got %q/%q", cfg.PlayerID, cfg.PlayerName)
	}
	if cfg.Relay.Codec != "msgpack" || cfg.Relay.Channel != "lobby" {
		t.Fatalf("expected relay overrides, got %+v", cfg.Relay)
	}
	if cfg.Relay.URL != defaultRelayURL {
		t.Fatalf("expected default url to survive, got %q", cfg.Relay.URL)
	}
	if cfg.Session.StopGraceDelay != 250*time.Millisecond || cfg.Session.SyncInterval != 2*time.Second {
		t.Fatalf("expected session durations, got %+v", cfg.Session)
	}
	if cfg.World.MoveSpeed != 6 || cfg.World.Diagonal != world.DiagonalLenient {
		t.Fatalf("expected world overrides, got speed %v policy %q", cfg.World.MoveSpeed, cfg.World.Diagonal)
	}
	if len(cfg.World.Obstacles) != len(world.DefaultObstacles()) {
		t.Fatalf("expected default obstacles to be kept, got %d", len(cfg.World.Obstacles))
	}
	if !cfg.Wander.Enabled || cfg.Wander.Interval != 3*time.Second {
		t.Fatalf("expected wander enabled with default interval, got %+v", cfg.Wander)
	}
	if cfg.Logging.MinimumSeverity != logging.SeverityDebug {
		t.Fatalf("expected debug severity, got %v", cfg.Logging.MinimumSeverity)
	}
	if cfg.Journal.Path != "run.db" {
		t.Fatalf("expected journal path, got %q", cfg.Journal.Path)
	}

	sc := cfg.SimConfig()
	if sc.StopGraceDelay != 250*time.Millisecond || sc.World.MoveSpeed != 6 {
		t.Fatalf("expected session config to carry overrides, got %+v", sc)
	}
	if meta := cfg.Meta(); meta.Name != "Alice" || meta.WorldDigest != cfg.World.Digest() {
		t.Fatalf("expected advertised meta, got %+v", meta)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "player_id: alice\n")
	cfg, err := LoadWithEnv(path, envOf(map[string]string{
		EnvRelayURL: " ws://relay:9000/ws ",
		EnvPlayerID: "bob",
		EnvLogLevel: "WARN",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relay.URL != "ws://relay:9000/ws" {
		t.Fatalf("expected env relay url, got %q", cfg.Relay.URL)
	}
	if cfg.PlayerID != "bob" {
		t.Fatalf("expected env player id, got %q", cfg.PlayerID)
	}
	if cfg.Log.Level != "warn" || cfg.Logging.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("expected warn level, got %q/%v", cfg.Log.Level, cfg.Logging.MinimumSeverity)
	}
}

func TestEmptyEnvironmentValuesAreIgnored(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(map[string]string{EnvPlayerID: "  "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PlayerID == "" || cfg.PlayerID == "  " {
		t.Fatalf("expected a generated id, got %q", cfg.PlayerID)
	}
}

func TestInvalidSettingsAreRejected(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{name: "codec", body: "relay:\n  codec: xml\n"},
		{name: "grace", body: "session:\n  stop_grace_delay: -1s\n"},
		{name: "sync", body: "session:\n  sync_interval: -5s\n"},
		{name: "level", body: "logging:\n  level: loud\n"},
		{name: "sink", body: "logging:\n  sinks: [console, syslog]\n"},
		{name: "world", body: "world:\n  diagonal: sideways\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWithEnv(writeConfig(t, tc.body), envOf(nil))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadReportsFileErrors(t *testing.T) {
	if _, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), envOf(nil)); err == nil {
		t.Fatalf("expected missing file error")
	}
	if _, err := LoadWithEnv(writeConfig(t, "relay: [1, 2\n"), envOf(nil)); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadWithEnv(writeConfig(t, "relay: [1, 2\n"), envOf(nil)); errors.Is(err, ErrInvalid) {
		t.Fatalf("expected parse errors to stay distinct from ErrInvalid")
	}
}

func TestPprofToggleFromEnvironment(t *testing.T) {
	cfg, err := LoadWithEnv("", envOf(map[string]string{EnvPprof: "true"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Relay.Observability.EnablePprof {
		t.Fatalf("expected pprof to be enabled")
	}
	if _, err := LoadWithEnv("", envOf(map[string]string{EnvPprof: "maybe"})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for a bad toggle, got %v", err)
	}
}
