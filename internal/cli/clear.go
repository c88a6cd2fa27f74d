package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ClearCmd returns the clear command
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all indexed documents",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		fmt.Fprint(cmd.OutOrStdout(), "remove all indexed documents? [y/N] ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.ingest.ClearAll(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
	return nil
}
