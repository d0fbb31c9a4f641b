package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/core/domain"
)

var (
	answerDoc       string
	answerTopK      int
	answerThreshold float64
	answerJSON      bool
)

var answerCmd = &cobra.Command{
	Use:   "answer <query>",
	Short: "Answer a question from indexed passages",
	Long: `Retrieves the passages most similar to the question and asks the
configured LLM to answer from them. Without an LLM the answer is an excerpt
of the best passages.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnswer,
}

func init() {
	answerCmd.Flags().StringVar(&answerDoc, "doc", "", "restrict to one document id")
	answerCmd.Flags().IntVarP(&answerTopK, "top-k", "k", 0, "number of passages (0 = configured default)")
	answerCmd.Flags().Float64Var(&answerThreshold, "threshold", 0, "minimum passage similarity")
	answerCmd.Flags().BoolVar(&answerJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(answerCmd)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	req := domain.AnswerRequest{
		Query:      args[0],
		DocumentID: answerDoc,
		TopK:       answerTopK,
	}
	if cmd.Flags().Changed("threshold") {
		t := answerThreshold
		req.Threshold = &t
	}

	ans, err := ragService.Answer(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if answerJSON {
		return printJSON(cmd, ans)
	}

	cmd.Println(ans.Answer)
	cmd.Println()
	cmd.Printf("Model: %s  Confidence: %.2f  Outcome: %s  Time: %s\n",
		ans.ModelUsed, ans.Confidence, ans.Outcome, ans.ResponseTime.Round(1e6))
	if ans.Err != nil {
		cmd.Printf("Note: %v\n", ans.Err)
	}
	if len(ans.Context) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		printChunks(cmd, ans.Context)
	}
	return nil
}
