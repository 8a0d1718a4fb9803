package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/nextday-freebusy/internal/availability"
	"github.com/bnema/nextday-freebusy/internal/calendar"
)

var (
	checkToken    string
	checkTimezone string
	checkFormat   string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check next working-day availability with a Google access token",
	Long: `Run one free/busy query for the next working day with an existing Google
access token that carries the calendar.freebusy scope.

The token is read from --token or the GOOGLE_ACCESS_TOKEN environment variable.

Examples:
  GOOGLE_ACCESS_TOKEN=ya29... nextday-freebusy check
  nextday-freebusy check --token ya29... --timezone Europe/Paris --format json`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkToken, "token", "", "Google access token (default: $GOOGLE_ACCESS_TOKEN)")
	checkCmd.Flags().StringVar(&checkTimezone, "timezone", "", "IANA timezone (default: TARGET_TIMEZONE)")
	checkCmd.Flags().StringVar(&checkFormat, "format", "text", "output format (text/json)")
}

type checkOutput struct {
	Date     string   `json:"date"`
	Timezone string   `json:"timezone"`
	Window   string   `json:"window"`
	Free     bool     `json:"free"`
	Busy     []string `json:"busy"`
	TimeMin  string   `json:"time_min"`
	TimeMax  string   `json:"time_max"`
	Error    string   `json:"error,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkFormat != "text" && checkFormat != "json" {
		return fmt.Errorf("invalid --format %q (text/json)", checkFormat)
	}

	token := checkToken
	if token == "" {
		token = os.Getenv("GOOGLE_ACCESS_TOKEN")
	}
	if token == "" {
		return errors.New("an access token is required (--token or GOOGLE_ACCESS_TOKEN)")
	}

	tz := checkTimezone
	if tz == "" {
		tz = cfg.Calendar.Timezone
	}

	reporter := availability.New(calendar.NewService(),
		availability.WithTimeout(cfg.Calendar.Timeout),
		availability.WithHours(cfg.Calendar.Hours()),
		availability.WithCalendarID(cfg.Calendar.CalendarID),
	)
	report := reporter.Get(cmd.Context(), token, tz)

	if err := printReport(cmd, report); err != nil {
		return err
	}
	if !report.OK() {
		return errors.New(report.Error)
	}
	return nil
}

func printReport(cmd *cobra.Command, report availability.Report) error {
	out := cmd.OutOrStdout()

	if checkFormat == "json" {
		busy := make([]string, 0, len(report.Busy))
		for _, b := range report.Busy {
			busy = append(busy, b.String())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(checkOutput{
			Date:     report.TargetDate,
			Timezone: report.Timezone,
			Window:   report.WindowLabel,
			Free:     report.Free(),
			Busy:     busy,
			TimeMin:  report.TimeMinISO,
			TimeMax:  report.TimeMaxISO,
			Error:    report.Error,
		})
	}

	fmt.Fprintf(out, "%s, %s (%s)\n", report.TargetDate, report.WindowLabel, report.Timezone)
	if !report.OK() {
		return nil
	}
	if report.Free() {
		fmt.Fprintln(out, "You appear to be completely free.")
		return nil
	}
	fmt.Fprintln(out, "Busy:")
	for _, b := range report.Busy {
		fmt.Fprintf(out, "  %s\n", b)
	}
	return nil
}
