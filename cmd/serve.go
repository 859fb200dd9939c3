package cmd

import (
	"github.com/findly-app/findly/internal/server"
	"github.com/findly-app/findly/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the findly HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		utils.Log.Infof("Using database %s", dbPath)

		lock := utils.NewDBLock(dbPath)
		srv := server.New(server.Config{
			DB:             db,
			WriteLock:      lock,
			Pipeline:       c.pipeline(db, lock),
			Recommender:    c.recommender(),
			Converter:      c.converter,
			Currency:       targetCurrency(""),
			Username:       viper.GetString("server.username"),
			Password:       viper.GetString("server.password"),
			RateLimit:      viper.GetInt("server.rate_limit"),
			AllowedOrigins: viper.GetStringSlice("server.allowed_origins"),
			Log:            utils.Log,
		})
		if viper.GetString("server.username") == "" {
			utils.Log.Warn("No server.username set, the API is not password protected")
		}

		ctx, cancel := signalContext()
		defer cancel()
		return srv.Start(ctx, viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Int("rate-limit", 60, "Requests per minute allowed per client IP (0 to disable)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
}
