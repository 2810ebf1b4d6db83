/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/server"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/storage"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var catalogShowJSON bool

// catalogCmd groups catalog snapshot commands.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Export and inspect product catalog snapshots",
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of every product to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)
		ctx := cmd.Context()

		objects, err := storage.FromConfig(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		deps, err := server.OpenDeps(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer deps.Close()

		exporter := services.NewCatalogExporter(store.NewProductRepository(deps.DB), objects, deps.Publisher, log)
		result, err := exporter.Export(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d products to %s/%s (%d bytes)\n",
			result.Count, result.Bucket, result.Key, result.Bytes)
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Read back an exported snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		objects, err := storage.FromConfig(ctx, cfg.Storage)
		if err != nil {
			return err
		}

		exporter := services.NewCatalogExporter(nil, objects, nil, newLogger(cfg))
		snapshot, err := exporter.Fetch(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if catalogShowJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}
		fmt.Fprintf(out, "%s: %d products exported at %s\n", args[0], snapshot.Count, snapshot.ExportedAt.Format("2006-01-02 15:04:05Z07:00"))
		for _, p := range snapshot.Products {
			fmt.Fprintf(out, "  %-16s %-8s %s\n", p.Barcode, p.SugarLevel, p.NameEn)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogExportCmd, catalogShowCmd)

	catalogShowCmd.Flags().BoolVar(&catalogShowJSON, "json", false, "print the snapshot document")
}
