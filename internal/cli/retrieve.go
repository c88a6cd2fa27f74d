package cli

import (
	"fmt"
	"strings"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
	"github.com/spf13/cobra"
)

// RetrieveCmd returns the retrieve command
func RetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <query>...",
		Short: "Retrieve the most relevant indexed chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRetrieve,
	}

	cmd.Flags().IntP("top-k", "k", 0, "Number of chunks to retrieve (0 uses the configured default)")
	cmd.Flags().Bool("document-qa", false, "Use the wider document-QA top_k")
	cmd.Flags().Bool("context", false, "Print the assembled context string instead of per-chunk scores")

	return cmd
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	topK, _ := cmd.Flags().GetInt("top-k")
	documentQA, _ := cmd.Flags().GetBool("document-qa")
	asContext, _ := cmd.Flags().GetBool("context")

	var result domain.RetrievalResult
	if documentQA {
		result, err = p.retrieval.RetrieveForDocumentQA(ctx, query)
	} else {
		result, err = p.retrieval.Retrieve(ctx, query, topK)
	}
	if err != nil {
		return err
	}

	if result.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return nil
	}

	out := cmd.OutOrStdout()
	if asContext {
		fmt.Fprintln(out, service.FormatContext(result))
		return nil
	}

	for _, c := range result.Chunks {
		fmt.Fprintf(out, "%.4f  %s#%d\n%s\n\n", c.Score, c.SourceID, c.ChunkIndex, c.Text)
	}
	return nil
}
