package cmd

import (
	"fmt"
	"os"

	"github.com/findly-app/findly/pkg/recommend"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest products based on the search history",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClients()
		if err != nil {
			return err
		}
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext()
		defer cancel()

		items, err := db.ListHistory(ctx, 0)
		if err != nil {
			return err
		}
		products := c.recommender().Recommend(ctx, items)
		if len(products) == 0 {
			fmt.Println("No recommendations yet. Search for a few products first.")
			return nil
		}
		curFlag, _ := cmd.Flags().GetString("currency")
		code := targetCurrency(curFlag)
		printProducts(os.Stdout, recommend.WithDisplayPrices(ctx, products, c.converter, code), code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().String("currency", "", "Currency to show prices in (default from config, INR)")
}
