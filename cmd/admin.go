/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/server"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/spf13/cobra"
)

var adminFlags struct {
	name     string
	email    string
	password string
}

// adminCmd groups account maintenance commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Creates an active administrator. The user API is admin-only, so the first
administrator has to be created here:

	sugarscan admin create --name Admin --email admin@example.com --password secret1
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)

		deps, err := server.OpenDeps(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer deps.Close()

		user, err := deps.Users.Create(cmd.Context(), rules.UserInput{
			Name:     types.NewValue(adminFlags.name),
			Email:    types.NewValue(adminFlags.email),
			Password: types.NewValue(adminFlags.password),
			Role:     types.NewValue(string(types.RoleAdmin)),
			Status:   types.NewValue(string(types.StatusActive)),
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminFlags.name, "name", "", "display name")
	adminCreateCmd.Flags().StringVar(&adminFlags.email, "email", "", "login email")
	adminCreateCmd.Flags().StringVar(&adminFlags.password, "password", "", "initial password")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
	_ = adminCreateCmd.MarkFlagRequired("name")
}
