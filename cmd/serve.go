package cmd

import (
	"fmt"
	"time"

	"github.com/courtrush/courtrush/internal/server"
	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/courtrush/courtrush/pkg/targets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	Long: `Start the JSON API server (health, config, check, reserve, search, runs).

With --cron or --auto the configured reservation batch (reservation.dates,
reservation.hours, reservation.courts) is also started on a schedule and
waits for the booking window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opening, err := openingConfig()
		if err != nil {
			return err
		}
		siteCfg := siteConfig(cmd)

		s := server.New(
			daehwa.NewSessionFactory(siteCfg, utils.Log),
			daehwa.NewScannerFactory(siteCfg, utils.Log),
			credentials(cmd),
			utils.Log,
		)
		s.Opening = opening
		s.Concurrency = viper.GetInt("concurrency")
		s.Defaults = reservationDefaults()
		s.SiteURL = siteCfg.BaseURL
		s.Username = viper.GetString("server.username")
		s.Password = viper.GetString("server.password")

		if noLock, _ := cmd.Flags().GetBool("no-lock"); !noLock {
			dir, err := utils.ConfigDir()
			if err != nil {
				return err
			}
			s.LockDir = dir
		}

		if noDB, _ := cmd.Flags().GetBool("no-db"); !noDB {
			dbPath, _ := cmd.Flags().GetString("dbpath")
			db, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			s.DB = db
		}

		spec, _ := cmd.Flags().GetString("cron")
		if auto, _ := cmd.Flags().GetBool("auto"); auto {
			if spec != "" {
				return fmt.Errorf("--cron and --auto are mutually exclusive")
			}
			if spec, err = schedule.CronSpec(opening, 2*time.Minute); err != nil {
				return err
			}
		}
		if spec != "" {
			req := targets.NewRequest()
			req.ApplyDefaults(reservationDefaults())
			if _, err := s.ScheduleBatch(spec, req); err != nil {
				return fmt.Errorf("could not schedule batch: %w", err)
			}
			utils.Log.Infof("Scheduled reservation batch with cron spec %q (%s)", spec, opening)
		}

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = viper.GetString("server.listen")
		}
		return s.Start(listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: server.listen)")
	serveCmd.Flags().String("cron", "", "Cron spec (5 fields) that starts the configured batch")
	serveCmd.Flags().Bool("auto", false, "Start the configured batch two minutes before each opening")
	serveCmd.Flags().String("dbpath", "", "Path to the history database (default: db.path or ~/.config/courtrush/courtrush.sqlite)")
	serveCmd.Flags().Bool("no-db", false, "Do not store run history")
	serveCmd.Flags().Bool("no-lock", false, "Do not take the per-account run lock")
}
