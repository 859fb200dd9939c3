package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/findly-app/findly/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	  __ _           _ _
	 / _(_)_ __   __| | |_   _
	| |_| | '_ \ / _' | | | | |
	|  _| | | | | (_| | | |_| |
	|_| |_|_| |_|\__,_|_|\__, |
	                     |___/
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "findly",
	Short: "Find where to buy what is in a picture.",
	Long: LOGO + `findly runs a reverse image search, keeps the priced product matches, scores
the sellers' domains for trust and ranks the results in your currency.

It also keeps a search history and builds shopping recommendations from it.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.findly.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is $HOME/.config/findly/findly.sqlite)")

	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

func setDefaults() {
	viper.SetDefault("serpapi.api_key", "")
	viper.SetDefault("serpapi.endpoint", "https://serpapi.com/search.json")
	viper.SetDefault("imgbb.api_key", "")
	viper.SetDefault("imgbb.endpoint", "https://api.imgbb.com/1/upload")
	viper.SetDefault("trust.api_key", "")
	viper.SetDefault("trust.host", "scamadviser-lite.p.rapidapi.com")
	viper.SetDefault("trust.endpoint", "https://scamadviser-lite.p.rapidapi.com/v1/trust/single")
	viper.SetDefault("trust.concurrency", 5)
	viper.SetDefault("rates.endpoint", "https://api.exchangerate-api.com/v4/latest")
	viper.SetDefault("rates.ttl", "24h")
	viper.SetDefault("currency.target", "INR")
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.requests_per_second", 0)
	viper.SetDefault("recommend.concurrency", 4)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
	viper.SetDefault("server.rate_limit", 60)
	viper.SetDefault("server.allowed_origins", []string{})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".findly")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FINDLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".findly.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
