package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed every document with the current configuration",
	Long: `Re-chunk and re-embed the stored content of every document. Run this after
changing the embedding model, tokenizer or chunk size so stored vectors are
comparable with new query embeddings.

With the bolt backend the command does nothing when the stored configuration
hash already matches; use --force to reindex anyway.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

var reindexForce bool

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "reindex even if stored embeddings match the configuration")
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetDataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.bolt != nil && !reindexForce {
		rebuild, reason, err := a.bolt.NeedsRebuild(a.cfg)
		if err != nil {
			return fmt.Errorf("failed to check schema info: %w", err)
		}
		if !rebuild {
			fmt.Fprintln(out, "Stored embeddings match the current configuration, nothing to reindex (use --force to reindex anyway)")
			return nil
		}
		fmt.Fprintf(out, "Reindexing: %s\n", reason)
	}

	result, err := a.indexer.ReindexAll(cmd.Context(), newProgress("Reindexing"))
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Fprintf(out, "\nReindex complete:\n")
	fmt.Fprintf(out, "  Documents reindexed: %d\n", result.Reindexed)
	fmt.Fprintf(out, "  Documents failed:    %d\n", result.Failed)
	fmt.Fprintf(out, "  Unreadable records:  %d\n", result.Skipped)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d documents could not be reindexed", result.Failed)
	}
	if a.bolt != nil {
		if err := a.bolt.Migrate(a.cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}
	return nil
}
