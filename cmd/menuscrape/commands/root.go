// Package commands implements the CLI commands for menuscrape.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "menuscrape",
	Short: "Menu extraction for Naver Place storefronts",
	Long: `Menuscrape reads the menu of a Naver Place storefront and emits
normalized menu records.

Extraction falls through four strategies: the storefront's menu list
markup, a text pattern scan, embedded JSON state and finally a
placeholder named after the store.

Examples:
  # Extract menus from a saved page
  menuscrape parse page.html --store-id 1234567

  # Fetch and extract one store
  menuscrape scrape --naver-id 1234567

  # Resolve a share link, fetch with a browser and store the result
  menuscrape scrape --url "https://naver.me/xYz" --store-id 42 \
      --fetch-mode dynamic --persist

  # Run a batch from a CSV file
  menuscrape scrape --targets stores.csv --format csv -o menus.csv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.menuscrape.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	// A .env file in the working directory may carry database credentials.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".menuscrape")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("MENUSCRAPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Also accept the conventional PostgreSQL variables
	_ = viper.BindEnv("database.url", "MENUSCRAPE_DATABASE_URL", "DATABASE_URL")
	_ = viper.BindEnv("database.host", "MENUSCRAPE_DATABASE_HOST", "POSTGRES_HOST")
	_ = viper.BindEnv("database.port", "MENUSCRAPE_DATABASE_PORT", "POSTGRES_PORT")
	_ = viper.BindEnv("database.user", "MENUSCRAPE_DATABASE_USER", "POSTGRES_USER")
	_ = viper.BindEnv("database.password", "MENUSCRAPE_DATABASE_PASSWORD", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("database.database", "MENUSCRAPE_DATABASE_DATABASE", "POSTGRES_DB")
	_ = viper.BindEnv("database.sslmode", "MENUSCRAPE_DATABASE_SSLMODE", "POSTGRES_SSLMODE")

	d := storage.DefaultConfig()
	viper.SetDefault("database.host", d.Host)
	viper.SetDefault("database.port", d.Port)
	viper.SetDefault("database.user", d.User)
	viper.SetDefault("database.database", d.Database)
	viper.SetDefault("database.sslmode", d.SSLMode)
	viper.SetDefault("database.connect_retries", d.ConnectRetries)
	viper.SetDefault("database.retry_delay", d.RetryDelay)
	viper.SetDefault("database.max_open_conns", d.MaxOpenConns)

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

func initLogger() error {
	return logger.Init(logger.Options{
		Level: viper.GetString("log.level"),
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log.json"),
	})
}

// databaseConfig assembles storage settings from flags, environment and
// config file.
func databaseConfig() storage.Config {
	return storage.Config{
		URL:            viper.GetString("database.url"),
		Host:           viper.GetString("database.host"),
		Port:           viper.GetInt("database.port"),
		User:           viper.GetString("database.user"),
		Password:       viper.GetString("database.password"),
		Database:       viper.GetString("database.database"),
		SSLMode:        viper.GetString("database.sslmode"),
		ConnectRetries: viper.GetInt("database.connect_retries"),
		RetryDelay:     viper.GetDuration("database.retry_delay"),
		MaxOpenConns:   viper.GetInt("database.max_open_conns"),
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
