package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/diarysync/internal/flagx"
)

// parseEnv loads the .env file named by -e/-env-file into the process
// environment, then overlays cfg with every variable that is set.
func parseEnv(cfg *Config, args []string) error {
	if path := flagx.EnvFile(args); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}
