package cmd

import (
	"fmt"
	"time"

	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the booking window status and the next opening",
	RunE: func(cmd *cobra.Command, args []string) error {
		opening, err := openingConfig()
		if err != nil {
			return err
		}
		now := time.Now()
		status := schedule.Check(now, opening)

		fmt.Printf("Opening: %s\n", opening)
		style := mutedStyle
		if status.Runnable() {
			style = successStyle
		}
		fmt.Printf("Status:  %s\n", style.Render(status.String()))
		if opening.Day == schedule.AlwaysOpen {
			return nil
		}

		next := schedule.NextOpening(now, opening)
		fmt.Printf("Next:    %s (in %s)\n", next.Format("2006-01-02 15:04"), next.Sub(now).Round(time.Second))
		if spec, err := schedule.CronSpec(opening, 2*time.Minute); err == nil {
			fmt.Printf("Cron:    %s (serve --auto)\n", spec)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
