package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/core/domain"
)

var (
	taskDoc    string
	taskTitle  string
	taskAuthor string
	taskFile   string
	taskQuery  string
	taskJSON   bool
)

var taskCmd = &cobra.Command{
	Use:   "task <kind>",
	Short: "Run a book analysis task",
	Long: `Runs one of the book analysis tasks:

  summary          - summarise --file content (or the indexed --doc)
  author_research  - background on --author
  recommendation   - suggest related books for --title/--author
  question         - answer --query from the indexed passages`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: taskKindNames(),
	RunE:      runTask,
}

func init() {
	taskCmd.Flags().StringVar(&taskDoc, "doc", "", "document id")
	taskCmd.Flags().StringVar(&taskTitle, "title", "", "book title")
	taskCmd.Flags().StringVar(&taskAuthor, "author", "", "book author")
	taskCmd.Flags().StringVar(&taskFile, "file", "", "read content from a text file")
	taskCmd.Flags().StringVar(&taskQuery, "query", "", "question for the question task")
	taskCmd.Flags().BoolVar(&taskJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(taskCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	if taskService == nil {
		return errors.New("task service not configured")
	}

	kind, err := domain.ParseTaskKind(args[0])
	if err != nil {
		return fmt.Errorf("%w (want one of %s)", err, strings.Join(taskKindNames(), ", "))
	}

	in := domain.TaskInput{
		Kind:       kind,
		DocumentID: taskDoc,
		Title:      taskTitle,
		Author:     taskAuthor,
		Query:      taskQuery,
	}
	if taskFile != "" {
		data, err := os.ReadFile(taskFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", taskFile, err)
		}
		in.Content = string(data)
	}

	res, err := taskService.Run(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	if taskJSON {
		return printJSON(cmd, res)
	}
	cmd.Println(res.Text)
	cmd.Println()
	cmd.Printf("Outcome: %s\n", res.Outcome)
	if res.Error != "" {
		cmd.Printf("Note: %s\n", res.Error)
	}
	return nil
}

func taskKindNames() []string {
	kinds := domain.AllTaskKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
