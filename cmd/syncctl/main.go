package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serviceURL  string
	userFlag    string
	entityFlag  string
	tokenFlag   string
	databaseArg string
	rootCmd     = &cobra.Command{
		Use:   "syncctl",
		Short: "CLI client for the Notion sync service",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&serviceURL, "service-url", "s", "http://localhost:8090", "Sync service base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("NOTION_TOKEN"), "Notion integration token (defaults to $NOTION_TOKEN)")

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Retrieve, match and report conflicts without writing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(newClient(serviceURL, tokenFlag), userFlag, entityFlag, databaseArg, cmd.OutOrStdout())
		},
	}
	addTargetFlags(previewCmd)
	rootCmd.AddCommand(previewCmd)

	var strategy string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full sync resolving every conflict with one strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(newClient(serviceURL, tokenFlag), userFlag, entityFlag, strategy, databaseArg, cmd.OutOrStdout())
		},
	}
	addTargetFlags(syncCmd)
	syncCmd.Flags().StringVar(&strategy, "strategy", "skip", "prefer_local, prefer_remote, merge or skip")
	rootCmd.AddCommand(syncCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(newClient(serviceURL, tokenFlag), cmd.OutOrStdout())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&entityFlag, "entity", "e", "", "Entity type, e.g. tasks (required)")
	cmd.Flags().StringVar(&databaseArg, "database", "", "Notion database id (defaults to the service registry)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("entity")
}
