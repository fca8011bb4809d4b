package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/courtrush/courtrush/pkg/orchestrator"
	"github.com/courtrush/courtrush/pkg/targets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Race for one or more court slots",
	Long: `Race for court slots. Targets come from one of three forms, first match wins:

  --reservation DATE:HOUR:COURT       explicit list
  --court-schedule COURT:HOUR,HOUR     per-court hours over every --date
  --date/--hour/--court                cartesian product

Missing cartesian dimensions fall back to reservation.dates/hours/courts.`,
	Example: `  courtrush reserve --date 2026-02-09 --hour 6 --hour 8 --court 2
  courtrush reserve --reservation 2026-02-09:6:2 --reservation 2026-02-10:8:3 --dry-run
  courtrush reserve --date 2026-02-09 --court-schedule 1:6,8 --court-schedule 3:10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := reserveRequest(cmd)
		if err != nil {
			return err
		}
		req.ApplyDefaults(reservationDefaults())
		tg, err := req.Expand()
		if err != nil {
			return err
		}

		creds := credentials(cmd)
		if err := requireCredentials(creds); err != nil {
			return err
		}
		opening, err := openingConfig()
		if err != nil {
			return err
		}

		lock, err := utils.NewRunLock("", creds.ID)
		if err != nil {
			return err
		}
		if err := lock.TryLock(); err != nil {
			return err
		}
		defer lock.Unlock()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = viper.GetInt("concurrency")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		utils.Log.Infof("%d target(s), mode=%s, dry-run=%v, wait=%v", len(tg), req.Mode(), req.DryRun, req.WaitForOpen)
		report, runErr := orchestrator.Run(ctx, orchestrator.Config{
			NewSession:  daehwa.NewSessionFactory(siteConfig(cmd), utils.Log),
			Credentials: creds,
			DryRun:      req.DryRun,
			WaitForOpen: req.WaitForOpen,
			Opening:     opening,
			Concurrency: concurrency,
			Log:         utils.Log,
			OnResult: func(res facility.Result) {
				utils.Log.WithField("success", res.Success).Infof("%s: %s", res.Target, res.Message)
			},
		}, tg)

		if useDB, _ := cmd.Flags().GetBool("db"); useDB {
			dbPath, _ := cmd.Flags().GetString("dbpath")
			db, err := openDB(dbPath)
			if err != nil {
				utils.Log.Warnf("Could not open database: %v", err)
			} else {
				if err := db.SaveReport(context.Background(), report); err != nil {
					utils.Log.Warnf("Could not save run: %v", err)
				}
				db.Close()
			}
		}

		printReport(os.Stdout, report)
		if runErr != nil {
			return runErr
		}
		if !report.Success() {
			return fmt.Errorf("no reservation succeeded")
		}
		return nil
	},
}

func reserveRequest(cmd *cobra.Command) (*targets.Request, error) {
	req := targets.NewRequest()

	resv, _ := cmd.Flags().GetStringArray("reservation")
	for _, s := range resv {
		r, err := targets.ParseReservation(s)
		if err != nil {
			return nil, err
		}
		req.Reservations = append(req.Reservations, r)
	}
	schedules, _ := cmd.Flags().GetStringArray("court-schedule")
	for _, s := range schedules {
		cs, err := targets.ParseCourtSchedule(s)
		if err != nil {
			return nil, err
		}
		req.CourtSchedules = append(req.CourtSchedules, cs)
	}

	req.Dates, _ = cmd.Flags().GetStringSlice("date")
	req.Hours, _ = cmd.Flags().GetIntSlice("hour")
	req.Courts, _ = cmd.Flags().GetIntSlice("court")
	req.DryRun, _ = cmd.Flags().GetBool("dry-run")
	noWait, _ := cmd.Flags().GetBool("no-wait")
	req.WaitForOpen = !noWait
	return req, nil
}

func init() {
	rootCmd.AddCommand(reserveCmd)
	addReserveFlags(reserveCmd)
}

func addReserveFlags(c *cobra.Command) {
	c.Flags().StringSliceP("date", "d", nil, "Date to book (YYYY-MM-DD), repeatable")
	c.Flags().IntSlice("hour", nil, "Start hour (6, 8, ... 20), repeatable")
	c.Flags().IntSliceP("court", "c", nil, "Court number (1-4), repeatable")
	c.Flags().StringArray("reservation", nil, "Explicit target DATE:HOUR:COURT, repeatable")
	c.Flags().StringArray("court-schedule", nil, "Per-court hours COURT:HOUR[,HOUR], repeatable")
	c.Flags().Bool("dry-run", false, "Stop before the final submission")
	c.Flags().Bool("no-wait", false, "Do not wait for the booking window")
	c.Flags().Int("concurrency", 0, "Worker pool size (default: concurrency setting)")
	c.Flags().Bool("db", false, "Store the run in the history database")
	c.Flags().String("dbpath", "", "Path to the history database (default: db.path or ~/.config/courtrush/courtrush.sqlite)")
}
