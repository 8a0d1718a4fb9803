package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/nextday-freebusy/internal/timewindow"
)

var (
	windowTimezone string
	windowAt       string
	formatFlag     string
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the next working-day window",
	Long: `Print the business-hours window that the availability check would query.

Examples:
  nextday-freebusy window
  nextday-freebusy window --timezone Europe/Paris
  nextday-freebusy window --at 2024-06-07T10:00:00-07:00 --format json`,
	RunE: runWindow,
}

func init() {
	windowCmd.Flags().StringVar(&windowTimezone, "timezone", "", "IANA timezone (default: TARGET_TIMEZONE)")
	windowCmd.Flags().StringVar(&windowAt, "at", "", "reference instant in RFC 3339 (default: now)")
	windowCmd.Flags().StringVar(&formatFlag, "format", "text", "output format (text/json)")
}

type windowOutput struct {
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
	Label    string `json:"label"`
	Fallback bool   `json:"fallback,omitempty"`
}

func runWindow(cmd *cobra.Command, args []string) error {
	if formatFlag != "text" && formatFlag != "json" {
		return fmt.Errorf("invalid --format %q (text/json)", formatFlag)
	}

	tz := windowTimezone
	if tz == "" {
		tz = cfg.Calendar.Timezone
	}

	now := time.Now()
	if windowAt != "" {
		at, err := time.Parse(time.RFC3339, windowAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = at
	}

	w := timewindow.NextWithHours(tz, now, cfg.Calendar.Hours())
	out := cmd.OutOrStdout()

	if formatFlag == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(windowOutput{
			Date:     w.Date.String(),
			Start:    w.StartISO(),
			End:      w.EndISO(),
			Timezone: w.Timezone,
			Label:    w.Label(),
			Fallback: w.Fallback,
		})
	}

	fmt.Fprintf(out, "%s, %s (%s)\n", w.DisplayDate(), w.Label(), w.Timezone)
	fmt.Fprintf(out, "  timeMin: %s\n  timeMax: %s\n", w.StartISO(), w.EndISO())
	if w.Fallback {
		fmt.Fprintf(out, "  note: timezone %q is unknown, UTC was used\n", tz)
	}
	return nil
}
