package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/findly-app/findly/internal/utils"
	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/rank"
	"github.com/findly-app/findly/pkg/search"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [image-file]",
	Short: "Search for products matching an image",
	Long: `Uploads the image (or uses --url), runs a reverse image search and prints the
priced matches. Trust scores are printed as they arrive, followed by the final
ranked table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imageURL, _ := cmd.Flags().GetString("url")
		if (len(args) == 0) == (imageURL == "") {
			return errors.New("provide either an image file or --url")
		}

		sortFlag, _ := cmd.Flags().GetString("sort")
		mode, err := rank.ParseSortMode(sortFlag)
		if err != nil {
			return err
		}
		curFlag, _ := cmd.Flags().GetString("currency")
		opts := rank.Options{Sort: mode, Currency: targetCurrency(curFlag)}
		if cmd.Flags().Changed("min-trust") {
			minTrust, _ := cmd.Flags().GetInt("min-trust")
			opts.MinTrust = &minTrust
		}

		var image []byte
		if imageURL == "" {
			image, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("could not read image: %w", err)
			}
		}

		c, err := newClients()
		if err != nil {
			return err
		}
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signalContext()
		defer cancel()

		pipeline := c.pipeline(db, utils.NewDBLock(dbPath))
		var res *search.Result
		if imageURL != "" {
			res, err = pipeline.RunURL(ctx, imageURL)
		} else {
			res, err = pipeline.Run(ctx, image)
		}
		if err != nil {
			utils.Log.Warnf("Search failed: %v", err)
			fmt.Println("No matches found")
			return nil
		}
		runSearchOutput(ctx, os.Stdout, res, opts, c.converter)
		return nil
	},
}

// runSearchOutput prints both phases of a search result.
func runSearchOutput(ctx context.Context, out io.Writer, res *search.Result, opts rank.Options, conv rank.LabelConverter) {
	if len(res.Matches) == 0 {
		fmt.Fprintln(out, "No matches found")
		return
	}

	fmt.Fprintf(out, "Found %d priced matches for %s\n\n", len(res.Matches), res.ImageURL)
	printMatches(out, res.Matches, false)

	n := 0
	for u := range res.Updates() {
		if n == 0 {
			fmt.Fprintln(out)
		}
		printTrustUpdate(out, u)
		n++
	}

	final := rank.Rank(ctx, res.Wait(), opts, conv)
	fmt.Fprintln(out)
	if len(final) == 0 {
		fmt.Fprintln(out, "No matches left after filtering")
		return
	}
	printRanked(ctx, out, final, opts.Currency, conv)
}

func printRanked(ctx context.Context, out io.Writer, matches []match.LensMatch, code string, conv rank.LabelConverter) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	column := code
	if column == "" {
		column = "AMOUNT"
	}
	fmt.Fprintf(w, "#\tTITLE\tPRICE\t%s\tTRUST\tLINK\n", column)
	for i, m := range matches {
		converted := "-"
		if v := rank.NormalizedPrice(ctx, m, code, conv); v > 0 {
			if code == "" {
				converted = strconv.FormatFloat(v, 'f', 2, 64)
			} else {
				converted = currency.FormatAmount(v, code)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, utils.Truncate(m.Title, titleWidth), m.Price(), converted, trustCell(m.TrustScore), m.Link)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("url", "", "Search an already hosted image instead of uploading a file")
	searchCmd.Flags().String("sort", "none", "Sort by price: none, asc or desc")
	searchCmd.Flags().Int("min-trust", 0, "Drop matches whose seller trust score is below this value")
	searchCmd.Flags().String("currency", "", "Currency to compare prices in (default from config, INR)")
}
