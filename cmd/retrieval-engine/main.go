// cmd/retrieval-engine/main.go
package main

import (
	"fmt"
	"os"

	"tourism-retrieval/internal/common/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "retrieval-engine",
	Short: "Multi-source tourism information retrieval",
	Long: `Answers tourism questions from a catalog of regional sources, ranks the
answers by corroboration and source reliability, and learns from feedback.

Commands:
  serve     - Run the HTTP API, feedback consumer and Zeebe workers
  search    - Run one search and print the ranked results
  sources   - List or validate the source catalog
  cleanup   - Apply the learning data retention window
  gaps      - Inspect knowledge gaps and mail the curation digest`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: configs/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(gapsCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
