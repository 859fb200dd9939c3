package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/style"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the style profile derived from the search history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListHistory(context.Background(), 0)
		if err != nil {
			return err
		}
		p := style.Build(items)
		if p.Empty() {
			fmt.Println("Not enough history to build a profile yet.")
			return nil
		}
		printProfile(os.Stdout, p)
		return nil
	},
}

func printProfile(out io.Writer, p style.Profile) {
	rows := []struct {
		name   string
		values []string
	}{
		{"Categories", p.Categories},
		{"Styles", p.Styles},
		{"Colors", p.Colors},
		{"Brands", p.Brands},
		{"Keywords", p.Keywords},
	}
	for _, r := range rows {
		v := "-"
		if len(r.values) > 0 {
			v = strings.Join(r.values, ", ")
		}
		fmt.Fprintf(out, "%-11s %s\n", r.name+":", v)
	}
	if qs := recommend.Queries(p); len(qs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recommendation queries:")
		for _, q := range qs {
			fmt.Fprintf(out, "  %s\n", q)
		}
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
