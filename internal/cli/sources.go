package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// SourcesCmd returns the sources command
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources",
		Args:  cobra.NoArgs,
		RunE:  runSources,
	}
}

func runSources(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	sources, err := p.ingest.Sources(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sources) == 0 {
		fmt.Fprintln(out, "no documents indexed")
		return nil
	}

	for _, s := range sources {
		fmt.Fprintf(out, "%s\t%d chunks\t%s\n", s.ID, s.ChunkCount, s.IngestedAt.UTC().Format(time.RFC3339))
	}
	return nil
}
