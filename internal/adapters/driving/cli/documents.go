package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Remove every indexed chunk of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var countCmd = &cobra.Command{
	Use:   "count [doc-id]",
	Short: "Count indexed chunks",
	Long:  `Counts the chunks stored for one document, or for all documents when no id is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(countCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	if err := ragService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	docID := ""
	if len(args) == 1 {
		docID = args[0]
	}
	n, err := ragService.Count(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}

	if docID == "" {
		cmd.Printf("%d chunks\n", n)
	} else {
		cmd.Printf("%s: %d chunks\n", docID, n)
	}
	return nil
}
