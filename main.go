package main

import (
	"os"
	_ "time/tzdata"

	"github.com/subosito/gotenv"

	"github.com/bnema/nextday-freebusy/cmd"
	"github.com/bnema/nextday-freebusy/internal/logger"
)

// Build-time variables injected by ldflags
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	// .env.local wins over .env; variables already set in the process win over both.
	for _, p := range []string{".env.local", ".env"} {
		if _, err := os.Stat(p); err == nil {
			if loadErr := gotenv.Load(p); loadErr != nil {
				logger.Warn("failed to load env file", "path", p, "error", loadErr)
			}
		}
	}

	cmd.SetVersionInfo(Version, CommitHash, BuildTime)

	if err := cmd.Execute(); err != nil {
		logger.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
