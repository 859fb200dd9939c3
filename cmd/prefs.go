package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/findly-app/findly/pkg/storage"
	"github.com/spf13/cobra"
)

// prefsCmd shows the stored preferences when called without a subcommand.
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show and edit user preferences",
	RunE:  showPrefs,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored preferences",
	RunE:  showPrefs,
}

var prefsThemeCmd = &cobra.Command{
	Use:       "theme <system|light|dark>",
	Short:     "Set the UI theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(storage.ThemeSystem), string(storage.ThemeLight), string(storage.ThemeDark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		theme, err := storage.ParseTheme(args[0])
		if err != nil {
			return err
		}
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withWriteLock(dbPath, func() error {
			if err := db.SetTheme(context.Background(), theme); err != nil {
				return err
			}
			fmt.Printf("Theme set to %s\n", theme)
			return nil
		})
	},
}

var prefsUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Set the user profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		ctx := context.Background()

		return withWriteLock(dbPath, func() error {
			u := storage.User{}
			if cur, err := db.User(ctx); err == nil {
				u = *cur
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			if cmd.Flags().Changed("name") {
				u.Name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("email") {
				u.Email, _ = cmd.Flags().GetString("email")
			}
			if cmd.Flags().Changed("image") {
				img, _ := cmd.Flags().GetString("image")
				u.ProfileImageURL = nil
				if img != "" {
					u.ProfileImageURL = &img
				}
			}

			saved, err := db.SetUser(ctx, u)
			if err != nil {
				return err
			}
			fmt.Printf("Saved user %s <%s>\n", saved.Name, saved.Email)
			return nil
		})
	},
}

var prefsSignoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the stored user profile, keeping the other preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withWriteLock(dbPath, func() error {
			if err := db.DeleteUser(context.Background()); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		})
	},
}

func showPrefs(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	theme, err := db.Theme(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Theme: %s\n", theme)

	u, err := db.User(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("User:  not set")
	case err != nil:
		return err
	default:
		fmt.Printf("User:  %s <%s>\n", u.Name, u.Email)
		if u.ProfileImageURL != nil {
			fmt.Printf("Image: %s\n", *u.ProfileImageURL)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsThemeCmd)
	prefsCmd.AddCommand(prefsUserCmd)
	prefsCmd.AddCommand(prefsSignoutCmd)
	prefsUserCmd.Flags().String("name", "", "Display name")
	prefsUserCmd.Flags().String("email", "", "Email address")
	prefsUserCmd.Flags().String("image", "", "Profile image URL (empty to clear)")
}
