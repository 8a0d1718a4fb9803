package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/nextday-freebusy/internal/config"
	"github.com/bnema/nextday-freebusy/internal/logger"
)

var (
	verbose   bool
	cfgDir    string
	logFormat string
	cfg       *config.Config

	// Version information
	version    = "dev"
	commitHash = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "nextday-freebusy",
	Short: "Check your Google Calendar availability for the next working day",
	Long: `nextday-freebusy signs you in with Google through an Auth0 tenant and shows
when you are busy during business hours on the next working day.

Run "nextday-freebusy serve" and open the printed URL in a browser. The
"window" and "check" commands run the same computation from the terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, commit, buildTimeStr string) {
	version = v
	commitHash = commit
	buildTime = buildTimeStr

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commitHash, buildTime)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "directory containing config.toml (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format, text or json (overrides LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(windowCmd)
	rootCmd.AddCommand(checkCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: verbose,
	})

	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}
