package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the JSON API under /api/v1 (documents, retrieve, answer, chat,
sessions, tasks, status) until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}

	server, err := httpapi.NewServer(&httpapi.Ports{RAG: ragService, Tasks: taskService})
	if err != nil {
		return err
	}
	if startJanitor != nil {
		startJanitor(cmd.Context())
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "HTTP API listening on %s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
