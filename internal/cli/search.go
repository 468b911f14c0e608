package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ragchat/internal/usecase"
)

var (
	searchText      string
	searchTopK      int
	searchThreshold float64
	searchJSON      bool
	searchModel     string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the knowledge base",
	Long: `Rank stored chunks by cosine similarity to the query embedding.

Examples:
  ragchat search -q "refund policy"
  ragchat search -q "onboarding" -k 5 -t 0.5 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "minimum similarity, exclusive (default from config)")
	searchCmd.Flags().StringVar(&searchModel, "model", "", "embedding model for this query")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetDataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	searcher := a.searcher
	if searchModel != "" {
		searcher = searcher.WithEmbedder(a.embedderFor(searchModel))
	}

	topK, threshold := searcher.Defaults()
	if cmd.Flags().Changed("top-k") {
		topK = searchTopK
	}
	if cmd.Flags().Changed("threshold") {
		threshold = searchThreshold
	}

	results, err := searcher.Search(cmd.Context(), searchText, topK, threshold)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No results above %.2f for: %s\n", threshold, searchText)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s (%s) (score: %.4f) ---\n", i+1, r.Title, r.DocumentID, r.Score)
		fmt.Fprintln(out, r.Content)
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, usecase.AugmentPrompt(searchText, results))
	fmt.Fprintln(out)
	return nil
}
