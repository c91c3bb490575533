// Package main provides the shelf CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/doi"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/session"
)

// Version is set at build time via ldflags
var Version = "dev"

// LibraryEnv names the environment variable selecting the library database.
const LibraryEnv = "SHELF_LIBRARY"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	libraryPath string
	logLevel    string
	askOnClose  bool

	logger   = zap.NewNop()
	settings = config.DefaultSettings()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Reference manager for PDF libraries",
	Long: `shelf manages a library of scientific references and their PDFs.

A library is a SQLite catalog plus a folder of attachments. Documents are
organized in a folder tree with a soft-delete Trash; duplicates can be found
and merged, and attachments can be searched through a full-text index.

Changes are saved when a command finishes.
All commands output JSON by default; use --human for text.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&libraryPath, "library", "L", "", "Library database (default: $SHELF_LIBRARY, then saving/current_lib_folder)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&askOnClose, "ask", false, "Ask before saving changes when attached to a terminal")
	rootCmd.Version = Version
}

// setup loads .env overrides, the logger and the settings file.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	if env := os.Getenv("SHELF_LOG_LEVEL"); env != "" && !cmd.Flags().Changed("log-level") {
		logLevel = env
	}
	l, err := logging.New("development", logLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger = l

	s, err := config.LoadSettings(config.SettingsPath())
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	settings = s
	return nil
}

// resolveLibrary returns the library database path to open.
func resolveLibrary() (string, bool) {
	if libraryPath != "" {
		return libraryPath, true
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		return env, true
	}
	if lib, ok := settings.Library(); ok {
		return lib.DBPath, true
	}
	return "", false
}

// mustOpenSession opens the selected library, exits on error.
// The caller is responsible for calling closeSession.
func mustOpenSession(ctx context.Context) *session.Session {
	dbPath, ok := resolveLibrary()
	if !ok {
		exitWithError(ExitConfigError, "no library selected\n\nRun 'shelf init <name>' or pass --library.")
	}
	s, err := session.Open(logging.WithLogger(ctx, logger), dbPath, settings, session.Options{
		Logger: logger,
		Lookup: doi.NewClient(doi.WithLogger(logger)),
	})
	if err != nil {
		exitWithFailure(err, "opening library")
	}
	return s
}

// closeSession saves pending changes and closes the library, exits on error.
// Entities that failed to save are reported on stderr. With --ask the user
// decides whether anything is saved.
func closeSession(ctx context.Context, s *session.Session) {
	if askOnClose {
		if err := s.Close(ctx, newTerminalPrompter()); err != nil {
			exitWithFailure(err, "closing library")
		}
		return
	}
	report, err := s.Save(ctx)
	if err != nil {
		exitWithFailure(err, "saving")
	}
	for _, f := range report.Failed {
		fmt.Fprintf(os.Stderr, "warning: not saved: %s %s: %s\n", f.Kind, f.ID, f.Detail)
	}
	if err := s.Close(ctx, nil); err != nil {
		exitWithFailure(err, "closing library")
	}
}

// exitWithFailure exits with the code matching the error's kind.
func exitWithFailure(err error, doing string) {
	if failure.IsCancelled(err) {
		exitWithError(ExitCancelled, "%s: cancelled", doing)
	}
	exitWithError(exitCodeFor(err), "%s: %v", doing, err)
}
