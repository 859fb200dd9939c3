package cmd

import (
	"fmt"

	"github.com/findly-app/findly/pkg/trust"
	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust <url>",
	Short: "Look up the trust score of a shop's domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := trust.DomainFromURL(args[0])
		if err != nil {
			return err
		}

		c, err := newClients()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		res, err := c.trust.Lookup(ctx, domain)
		if err != nil {
			return fmt.Errorf("trust lookup for %s failed: %w", domain, err)
		}
		score := "unknown"
		if res.Score != nil {
			score = fmt.Sprintf("%d/100", *res.Score)
		}
		if res.Status != "" {
			fmt.Printf("%s: %s (%s)\n", domain, score, res.Status)
		} else {
			fmt.Printf("%s: %s\n", domain, score)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trustCmd)
}
