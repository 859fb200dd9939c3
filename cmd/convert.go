package cmd

import (
	"fmt"

	"github.com/findly-app/findly/pkg/currency"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <price>",
	Short: "Convert a price label such as \"€12.50\" to another currency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		to = targetCurrency(to)

		p, ok := currency.Parse(args[0])
		if !ok {
			return fmt.Errorf("could not parse price %q", args[0])
		}

		c, err := newClients()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		v, err := c.converter.Convert(ctx, p.Amount, p.Code, to)
		if err != nil {
			return fmt.Errorf("could not convert %s to %s: %w", p.Code, to, err)
		}
		fmt.Printf("%s = %s\n", currency.FormatAmount(p.Amount, p.Code), currency.FormatAmount(v, to))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().String("to", "", "Target currency code (default from config, INR)")
}
