package cmd

import (
	"fmt"
	"os"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `                      _                      _
  ___ ___  _   _ _ __| |_ _ __ _   _ ___| |__
 / __/ _ \| | | | '__| __| '__| | | / __| '_ \
| (_| (_) | |_| | |  | |_| |  | |_| \__ \ | | |
 \___\___/ \__,_|_|   \__|_|   \__,_|___/_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "courtrush",
	Short: "Books municipal tennis courts the moment the booking window opens.",
	Long: LOGO + `courtrush logs in ahead of time, waits for the monthly opening instant and
races every requested (date, hour, court) slot in parallel on the Goyang
Daehwa tennis-court reservation site.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.courtrush.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().StringP("user", "u", "", "Member ID (default: credentials.id / TENNIS_USER_ID)")
	rootCmd.PersistentFlags().StringP("password", "p", "", "Member password (default: credentials.password / TENNIS_USER_PW)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine; variables already set in the environment win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".courtrush")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("credentials.id", "TENNIS_USER_ID")
	viper.BindEnv("credentials.password", "TENNIS_USER_PW")

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.courtrush.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("credentials.id", "")
	viper.SetDefault("credentials.password", "")

	viper.SetDefault("site.url", "https://daehwa.gys.or.kr:451")

	viper.SetDefault("opening.day", 25)
	viper.SetDefault("opening.hour", 10)
	viper.SetDefault("opening.minute", 0)

	viper.SetDefault("retry.max", 10)
	viper.SetDefault("retry.step", 3)
	viper.SetDefault("retry.pool", 3)
	viper.SetDefault("retry.delay_min_ms", 100)
	viper.SetDefault("retry.delay_max_ms", 1000)

	viper.SetDefault("timeout.connect_seconds", 5)
	viper.SetDefault("timeout.read_seconds", 30)

	viper.SetDefault("concurrency", 10)

	viper.SetDefault("reservation.dates", []string{})
	viper.SetDefault("reservation.hours", []int{})
	viper.SetDefault("reservation.courts", []int{})

	viper.SetDefault("db.path", "")

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}
