package main

import (
	"fmt"
	"os"

	"github.com/corpusworks/corpusd/internal/cli"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "corpusd",
		Short:   "Corpusd daemon and CLI",
		Long:    "Corpusd indexes documents as embeddings and retrieves relevant context for a query",
		Version: version,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.RetrieveCmd())
	rootCmd.AddCommand(cli.SourcesCmd())
	rootCmd.AddCommand(cli.RemoveCmd())
	rootCmd.AddCommand(cli.ClearCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
