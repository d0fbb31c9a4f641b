package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/core/domain"
)

var (
	retrieveDoc  string
	retrieveTopK int
	retrieveJSON bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Show the passages most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveDoc, "doc", "", "restrict to one document id")
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "number of passages (0 = configured default)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output passages as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	chunks, err := ragService.Retrieve(cmd.Context(), args[0], retrieveDoc, retrieveTopK)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return printJSON(cmd, chunks)
	}
	printChunks(cmd, chunks)
	return nil
}

func printChunks(cmd *cobra.Command, chunks []domain.ContextChunk) {
	if len(chunks) == 0 {
		cmd.Println("No passages found.")
		return
	}
	for i := range chunks {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, chunks[i].DocumentID, chunks[i].Index, chunks[i].Score)
		cmd.Printf("      %s\n", snippet(chunks[i].Content, 160))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
