package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/findly-app/findly/pkg/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// historyCmd lists the search history when called without a subcommand.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show and manage the search history",
	RunE:  listHistory,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past searches, newest first",
	RunE:  listHistory,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <id> [id...]",
	Short: "Remove history items by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withWriteLock(dbPath, func() error {
			n, err := db.RemoveHistory(context.Background(), ids...)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d history item(s)\n", n)
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole search history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withWriteLock(dbPath, func() error {
			n, err := db.ClearHistory(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d history item(s)\n", n)
			return nil
		})
	},
}

func listHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	query, _ := cmd.Flags().GetString("query")

	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := db.SearchHistory(context.Background(), query, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		if query != "" {
			fmt.Printf("No searches match %q.\n", query)
		} else {
			fmt.Println("No searches yet.")
		}
		return nil
	}
	printHistory(os.Stdout, items)
	return nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid history id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.PersistentFlags().Int("limit", storage.MaxHistory, "Maximum number of items to list")
	historyCmd.PersistentFlags().StringP("query", "q", "", "Only list items whose title, day or month matches this text")
}
