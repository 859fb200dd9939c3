package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/findly-app/findly/internal/utils"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/storage"
)

const titleWidth = 50

func trustCell(score *int) string {
	if score == nil {
		return "-"
	}
	return strconv.Itoa(*score)
}

// printMatches writes one row per match. The trust column is only shown
// once enrichment has run.
func printMatches(out io.Writer, matches []match.LensMatch, withTrust bool) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	if withTrust {
		fmt.Fprintln(w, "#\tTITLE\tPRICE\tSOURCE\tTRUST\tLINK")
	} else {
		fmt.Fprintln(w, "#\tTITLE\tPRICE\tSOURCE\tLINK")
	}
	for i, m := range matches {
		if withTrust {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, utils.Truncate(m.Title, titleWidth), m.Price(), m.Source, trustCell(m.TrustScore), m.Link)
		} else {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, utils.Truncate(m.Title, titleWidth), m.Price(), m.Source, m.Link)
		}
	}
	w.Flush()
}

func printTrustUpdate(out io.Writer, u match.TrustUpdate) {
	fmt.Fprintf(out, "[trust] #%d %s -> %d\n", u.Index+1, u.Link, u.Score)
}

func printHistory(out io.Writer, items []storage.HistoryItem) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tTITLE\tIMAGE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.CreatedAt.Local().Format("2006-01-02 15:04"), utils.Truncate(it.Title, titleWidth), it.ImageURL)
	}
	w.Flush()
}

// printProducts writes recommendations with their price converted to code.
// The converted column falls back to the listed price.
func printProducts(out io.Writer, products []recommend.Product, code string) {
	column := code
	if column == "" {
		column = "DISPLAY"
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "TITLE\tPRICE\t%s\tSOURCE\tLINK\n", column)
	for _, p := range products {
		display := p.DisplayPrice
		if display == "" {
			display = p.Price
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", utils.Truncate(p.Title, titleWidth), p.Price, display, p.Source, p.Link)
	}
	w.Flush()
}
