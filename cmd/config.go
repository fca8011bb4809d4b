package cmd

import (
	"fmt"
	"time"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/courtrush/courtrush/pkg/storage"
	"github.com/courtrush/courtrush/pkg/targets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// siteConfig turns the viper settings into the immutable facility config.
func siteConfig(cmd *cobra.Command) daehwa.Config {
	cfg := daehwa.DefaultConfig()
	cfg.BaseURL = viper.GetString("site.url")
	cfg.MaxRetries = viper.GetInt("retry.max")
	cfg.LoginAttempts = viper.GetInt("retry.max")
	cfg.StepRetries = viper.GetInt("retry.step")

	cfg.Transport.PoolRetries = viper.GetInt("retry.pool")
	cfg.Transport.DelayMin = time.Duration(viper.GetInt("retry.delay_min_ms")) * time.Millisecond
	cfg.Transport.DelayMax = time.Duration(viper.GetInt("retry.delay_max_ms")) * time.Millisecond
	cfg.Transport.ConnectTimeout = time.Duration(viper.GetInt("timeout.connect_seconds")) * time.Second
	cfg.Transport.ReadTimeout = time.Duration(viper.GetInt("timeout.read_seconds")) * time.Second

	proxy, _ := cmd.Flags().GetString("proxy")
	cfg.Transport.Proxy = proxy
	return cfg
}

func openingConfig() (schedule.Opening, error) {
	o := schedule.Opening{
		Day:    viper.GetInt("opening.day"),
		Hour:   viper.GetInt("opening.hour"),
		Minute: viper.GetInt("opening.minute"),
	}
	return o, o.Validate()
}

// credentials prefers --user/--password over the configured account.
func credentials(cmd *cobra.Command) facility.Credentials {
	c := facility.Credentials{
		ID:       viper.GetString("credentials.id"),
		Password: viper.GetString("credentials.password"),
	}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		c.ID = u
	}
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		c.Password = p
	}
	return c
}

func requireCredentials(c facility.Credentials) error {
	if c.Empty() {
		return fmt.Errorf("missing credentials: set TENNIS_USER_ID/TENNIS_USER_PW, credentials.id/credentials.password or --user/--password")
	}
	return nil
}

func reservationDefaults() targets.Defaults {
	return targets.Defaults{
		Dates:  viper.GetStringSlice("reservation.dates"),
		Hours:  viper.GetIntSlice("reservation.hours"),
		Courts: viper.GetIntSlice("reservation.courts"),
	}
}

// openDB opens the run history at dbPath, falling back to db.path and then
// to the default location.
func openDB(dbPath string) (*storage.DB, error) {
	if dbPath == "" {
		dbPath = viper.GetString("db.path")
	}
	abs, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	utils.Log.Debugf("Using database %s", abs)
	return storage.Open(abs)
}
