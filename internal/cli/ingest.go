package cli

import (
	"fmt"
	"os"

	"github.com/corpusworks/corpusd/internal/extract"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index one or more documents",
		Long:  "Extract text from the given files and index them for retrieval. Re-ingesting a file replaces its previous chunks.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	for _, path := range args {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}

		text, err := extract.Text(path, file)
		file.Close()
		if err != nil {
			return err
		}

		source, err := p.ingest.Ingest(ctx, extract.SourceID(path), extract.SourceID(path), text)
		if err != nil {
			return err
		}

		fmt.Printf("indexed %s (%d chunks)\n", source.ID, source.ChunkCount)
	}

	return nil
}
