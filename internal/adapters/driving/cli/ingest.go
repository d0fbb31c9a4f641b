package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/core/domain"
)

var (
	ingestText  string
	ingestTitle string
	ingestMeta  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <doc-id> [file]",
	Short: "Index a document",
	Long: `Chunks, embeds and indexes a document, replacing any chunks previously
stored under the same id.

The text comes from --text, from a file (pdf, docx, html, markdown or plain
text) or, when neither is given, from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "document text")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringArrayVar(&ingestMeta, "meta", nil, "metadata as key=value (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	docID := args[0]
	metadata, err := parseMeta(ingestMeta)
	if err != nil {
		return err
	}

	var res domain.IngestResult
	switch {
	case len(args) == 2:
		res, err = ingestFile(cmd, docID, args[1], metadata)
	case ingestText != "":
		res, err = ragService.Ingest(cmd.Context(), domain.Document{
			ID: docID, Title: ingestTitle, Content: ingestText, Metadata: metadata,
		})
	default:
		var data []byte
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		res, err = ragService.Ingest(cmd.Context(), domain.Document{
			ID: docID, Title: ingestTitle, Content: string(data), Metadata: metadata,
		})
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %s: %d chunks, %d indexed, %d skipped (%s)\n",
		res.DocumentID, res.Chunks, res.Indexed, res.Skipped, res.Outcome)
	return nil
}

func ingestFile(cmd *cobra.Command, docID, path string, metadata map[string]any) (domain.IngestResult, error) {
	if documentService == nil {
		return domain.IngestResult{}, errors.New("document service not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if ingestTitle != "" {
		metadata["title"] = ingestTitle
	}
	return documentService.IngestRaw(cmd.Context(), docID, &domain.RawDocument{
		URI:      path,
		Content:  data,
		Metadata: metadata,
	})
}

func parseMeta(pairs []string) (map[string]any, error) {
	metadata := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: metadata %q is not key=value", domain.ErrInvalidInput, p)
		}
		metadata[strings.TrimSpace(k)] = v
	}
	return metadata, nil
}
