/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sugarscan",
	Short: "Cambo Sugar Scan API server and maintenance tools",
	Long: `Cambo Sugar Scan serves the sugar content catalog for packaged drinks and
snacks, along with user accounts and age-based sugar guidance.

	sugarscan migrate up
	sugarscan admin create --name Admin --email admin@example.com --password secret1
	sugarscan server
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) logging.Logger {
	return logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
}
