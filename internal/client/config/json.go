package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
	"github.com/dmitrijs2005/diarysync/internal/flagx"
	"github.com/dmitrijs2005/diarysync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It is seeded
// from the current Config, so keys absent from the file leave values alone.
type JsonConfig struct {
	DBPath       string              `json:"db_path"`
	LogLevel     string              `json:"log_level"`
	LogFormat    string              `json:"log_format"`
	HTTPAddr     string              `json:"http_addr"`
	PullSchedule string              `json:"pull_schedule"`
	REPL         bool                `json:"repl"`
	MaxAttempts  int                 `json:"max_attempts"`
	Timeout      timex.Duration      `json:"timeout"`
	Remote       client.RemoteConfig `json:"remote"`
}

// parseJSON overlays cfg with the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	jc := JsonConfig{
		DBPath:       cfg.DBPath,
		LogLevel:     cfg.LogLevel,
		LogFormat:    cfg.LogFormat,
		HTTPAddr:     cfg.HTTPAddr,
		PullSchedule: cfg.PullSchedule,
		REPL:         cfg.REPL,
		MaxAttempts:  cfg.MaxAttempts,
		Timeout:      timex.Duration{Duration: cfg.Timeout},
		Remote:       cfg.Remote,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.DBPath = jc.DBPath
	cfg.LogLevel = jc.LogLevel
	cfg.LogFormat = jc.LogFormat
	cfg.HTTPAddr = jc.HTTPAddr
	cfg.PullSchedule = jc.PullSchedule
	cfg.REPL = jc.REPL
	cfg.MaxAttempts = jc.MaxAttempts
	cfg.Timeout = jc.Timeout.Duration
	cfg.Remote = jc.Remote
	return nil
}
