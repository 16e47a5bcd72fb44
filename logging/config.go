package logging

import (
	"slices"
	"time"
)

const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkZap     = "zap"
	SinkMemory  = "memory"
)

type Config struct {
	EnabledSinks     []string       `yaml:"sinks"`
	BufferSize       int            `yaml:"buffer_size"`
	MinimumSeverity  Severity       `yaml:"-"`
	Level            string         `yaml:"level"`
	Fields           map[string]any `yaml:"fields"`
	JSON             JSONConfig     `yaml:"json"`
	DropWarnInterval time.Duration  `yaml:"drop_warn_interval"`
}

// JSONConfig controls the newline-delimited event file. The file is rotated
// by size.
type JSONConfig struct {
	FilePath      string        `yaml:"file_path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxSizeMB     int           `yaml:"max_size_mb"`
	MaxBackups    int           `yaml:"max_backups"`
	MaxAgeDays    int           `yaml:"max_age_days"`
	Compress      bool          `yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		Level:            "info",
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FilePath:      "logs/events.jsonl",
			FlushInterval: 2 * time.Second,
			MaxSizeMB:     50,
			MaxBackups:    5,
			MaxAgeDays:    7,
		},
	}
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
