// Package cli implements the libris command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Services bundles the ports the commands drive.
type Services struct {
	RAG       driving.RAGService
	Documents driving.DocumentService
	Tasks     driving.TaskService
	Settings  driving.SettingsService

	// SupportsFile reports whether a path has an ingestible format.
	SupportsFile func(path string) bool

	// StartJanitor begins evicting expired chat sessions until ctx ends.
	StartJanitor func(ctx context.Context)
}

// ServiceLoader builds the services for a config file path.
// An empty path selects the default location.
type ServiceLoader func(configPath string) (*Services, error)

var (
	ragService      driving.RAGService
	documentService driving.DocumentService
	taskService     driving.TaskService
	settingsService driving.SettingsService
	supportsFile    func(path string) bool
	startJanitor    func(ctx context.Context)

	loader ServiceLoader
)

var errRAGNotConfigured = errors.New("rag service not configured")

var rootCmd = &cobra.Command{
	Use:   "libris",
	Short: "Retrieval-augmented answers over your books",
	Long: `Libris chunks, embeds and indexes book text, then answers questions,
holds chat sessions and runs book analysis tasks grounded in the
retrieved passages.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.libris/config.toml)")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices installs the ports used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ragService = s.RAG
	documentService = s.Documents
	taskService = s.Tasks
	settingsService = s.Settings
	supportsFile = s.SupportsFile
	startJanitor = s.StartJanitor
}

// SetServiceLoader registers the loader called before each command when
// no services were installed with SetServices.
func SetServiceLoader(l ServiceLoader) {
	loader = l
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadServices(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if loader == nil || ragService != nil {
		return nil
	}
	s, err := loader(configPath)
	if err != nil {
		return err
	}
	SetServices(s)
	return nil
}
