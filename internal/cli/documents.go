package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a document from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetDataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.catalog.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		output, _ := json.MarshalIndent(summaries, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tCREATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Type, s.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetDataDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.catalog.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
