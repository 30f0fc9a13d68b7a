package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/diarysync/internal/client/client"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{"-d", "j.db", "-r", "s3", "-l", "debug", "-a", ":8080", "-v"},
			expected: &Config{
				DBPath:      "j.db",
				LogLevel:    "debug",
				HTTPAddr:    ":8080",
				ShowVersion: true,
				Remote:      client.RemoteConfig{Kind: client.KindS3},
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"-c", "cfg.json", "-e", ".env", "-d", "j.db"},
			expected: &Config{DBPath: "j.db"},
		},
		{
			name:    "bad bool value",
			args:    []string{"-v=maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestLoadConfig_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("DIARY_REMOTE", "couchdb")
	t.Setenv("DIARY_DB", "env.db")

	cfg, err := LoadConfig([]string{"-r", "grpc"})
	require.NoError(t, err)

	assert.Equal(t, client.KindGRPC, cfg.Remote.Kind)
	assert.Equal(t, "env.db", cfg.DBPath)
}
