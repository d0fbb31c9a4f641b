package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/adapters/driving/watch"
)

var watchNoScan bool

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep the index in sync with a directory",
	Long: `Ingests every supported file under the directory, then re-ingests files
as they are created or written and deletes the chunks of removed files.
Document ids are paths relative to the directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip the initial ingestion of existing files")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errRAGNotConfigured
	}
	if documentService == nil {
		return errors.New("document service not configured")
	}

	opts := []watch.Option{}
	if supportsFile != nil {
		opts = append(opts, watch.WithSupportsFile(supportsFile))
	}
	if !watchNoScan {
		opts = append(opts, watch.WithInitialScan())
	}

	w, err := watch.New(args[0], documentService, ragService, opts...)
	if err != nil {
		return err
	}
	cmd.PrintErrf("Watching %s (Ctrl+C to stop)\n", w.Root())
	return w.Run(cmd.Context())
}
