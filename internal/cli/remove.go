package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RemoveCmd returns the remove command
func RemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Remove an indexed source",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.ingest.Remove(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}
