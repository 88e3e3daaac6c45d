package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadopc/tally/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user and print its API token",
	Args:  cobra.NoArgs,
	RunE:  runUserAdd,
}

var (
	userDB    string
	userEmail string
	userName  string
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.PersistentFlags().StringVar(&userDB, "db", "", "SQLite database path (overrides server.database)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.MarkFlagRequired("email")
}

func openStore(override string) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.New(firstNonEmpty(override, cfg.Server.Database))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	s, err := openStore(userDB)
	if err != nil {
		return err
	}
	defer s.Close()

	u, token, err := s.CreateUser(cmd.Context(), userEmail, userName)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created user %s (%s)\n", u.Email, u.ID)
	fmt.Fprintf(out, "token: %s\n", token)
	return nil
}
