package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/libris/internal/core/domain"
)

var statusFormat string

var errUnhealthy = errors.New("pipeline unhealthy")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the health of the pipeline",
	Long: `Reports whether the embedding provider, vector store and LLM are usable,
together with the effective configuration (API keys masked).

Exits with an error when embedding or the vector store is unavailable.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	st := ragService.Status(cmd.Context())

	switch statusFormat {
	case "json":
		if err := printJSON(cmd, st); err != nil {
			return err
		}
	case "yaml":
		data, err := yaml.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Print(string(data))
	case "table":
		printStatusTable(cmd, st)
	default:
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, statusFormat)
	}

	if !st.Healthy() {
		return errUnhealthy
	}
	return nil
}

func printStatusTable(cmd *cobra.Command, st domain.ServiceStatus) {
	cmd.Println("Pipeline Status")
	cmd.Println("===============")
	printComponent(cmd, "Embedding", st.Embedding)
	printComponent(cmd, "Vector store", st.VectorStore)
	printComponent(cmd, "Generation", st.Generation)

	if len(st.Config) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("[Config]")
	printSorted(cmd, st.Config)
}

func printComponent(cmd *cobra.Command, name string, c domain.ComponentStatus) {
	cmd.Printf("  %-13s %s\n", name+":", c.Status)
	keys := sortedKeys(c.Details)
	for _, k := range keys {
		cmd.Printf("      %s: %v\n", k, c.Details[k])
	}
}

func printSorted(cmd *cobra.Command, m map[string]any) {
	for _, k := range sortedKeys(m) {
		cmd.Printf("  %s = %v\n", k, m[k])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
