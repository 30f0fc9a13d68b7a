package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/diarysync/internal/flagx"
	"github.com/dmitrijs2005/diarysync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. TokenTTL
// accepts both "24h" and integer nanoseconds.
type JsonConfig struct {
	GRPCAddr    string         `json:"grpc_addr"`
	DatabaseDSN string         `json:"database_dsn"`
	SecretKey   string         `json:"secret_key"`
	TokenTTL    timex.Duration `json:"token_ttl"`
	LogLevel    string         `json:"log_level"`
	LogFormat   string         `json:"log_format"`
}

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
		GRPCAddr:    cfg.GRPCAddr,
		DatabaseDSN: cfg.DatabaseDSN,
		SecretKey:   cfg.SecretKey,
		TokenTTL:    timex.Duration{Duration: cfg.TokenTTL},
		LogLevel:    cfg.LogLevel,
		LogFormat:   cfg.LogFormat,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.GRPCAddr = jc.GRPCAddr
	cfg.DatabaseDSN = jc.DatabaseDSN
	cfg.SecretKey = jc.SecretKey
	cfg.TokenTTL = jc.TokenTTL.Duration
	cfg.LogLevel = jc.LogLevel
	cfg.LogFormat = jc.LogFormat
	return nil
}
