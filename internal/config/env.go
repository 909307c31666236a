package config

import (
	"os"
	"strings"
)

// Token environment variables, in lookup order.
var tokenEnvVars = []string{"LISTINGBOT_TOKEN", "TELEGRAM_BOT_TOKEN"}

// applyEnv fills values that may come from the environment. A token in the
// file wins over the environment.
func applyEnv(cfg *Config) {
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		return
	}
	for _, k := range tokenEnvVars {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			cfg.Telegram.Token = v
			return
		}
	}
}
