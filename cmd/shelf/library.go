package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/pdf"
	"github.com/matsen/shelf/internal/session"
)

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(openCmd)

	initCmd.Flags().StringVar(&initDir, "dir", "", "Storage folder (default: saving/storage_folder, then the current directory)")
	initCmd.Flags().BoolVar(&initNoSelect, "no-select", false, "Do not make the new library the current one")
	openCmd.Flags().StringVar(&openViewer, "viewer", "", "Viewer command (default: $SHELF_PDF_VIEWER, then the platform opener)")
}

var (
	initDir      string
	initNoSelect bool
	openViewer   string
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new library",
	Long: `Create a new library called <name>: <dir>/<name>.sqlite holding the
catalog and <dir>/<name>/ holding the attachments.

The new library becomes the current one unless --no-select is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := initDir
	if dir == "" {
		dir = settings.Saving.StorageFolder
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			exitWithError(ExitError, "getting current directory: %v", err)
		}
		dir = cwd
	}
	if err := config.ValidateStorageFolder(dir); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	lib := config.NewLibrary(dir, args[0])
	if lib.Exists() {
		exitWithError(ExitDataError, "library already exists: %s", lib.DBPath)
	}
	s, err := session.Open(logging.WithLogger(ctx, logger), lib.DBPath, settings, session.Options{Logger: logger, Create: true})
	if err != nil {
		exitWithFailure(err, "creating library")
	}
	closeSession(ctx, s)

	if !initNoSelect {
		settings.Saving.StorageFolder = dir
		settings.Saving.CurrentLibFolder = lib.Folder
		if err := settings.Save(config.SettingsPath()); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}

	if humanOutput {
		outputHuman("Created library %s at %s\n", lib.Name, lib.DBPath)
	} else {
		outputJSON(StatusResponse{Status: "created", Path: lib.DBPath})
	}
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show library statistics",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	info, err := s.Info()
	if err != nil {
		exitWithFailure(err, "reading library")
	}
	if !humanOutput {
		outputJSON(info)
		return nil
	}

	fmt.Printf("Library:       %s\n", info.Name)
	fmt.Printf("Catalog:       %s\n", info.DBPath)
	fmt.Printf("Documents:     %s (%s live, %s in review, %s trashed)\n",
		humanize.Comma(int64(info.Documents)), humanize.Comma(int64(info.Live)),
		humanize.Comma(int64(info.NeedsReview)), humanize.Comma(int64(info.Trashed)))
	fmt.Printf("Folders:       %d\n", info.Folders)
	if info.FullText {
		fmt.Printf("Full-text:     %s\n", humanize.Bytes(uint64(info.FullTextSize)))
	} else {
		fmt.Printf("Full-text:     not built (run 'shelf index')\n")
	}
	if !info.LastAdded.IsZero() {
		fmt.Printf("Last added:    %s\n", humanize.Time(info.LastAdded))
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set settings",
	Long: `Get or set settings in ~/.config/shelf/settings.yml.

Usage:
  shelf config                               # Show all settings
  shelf config duplicate_min_score           # Get a value
  shelf config duplicate_min_score 80        # Set a value
  shelf config search/search_fields Title,Authors,PDF

List values are comma-separated.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		values := make(map[string]string)
		for _, key := range config.Keys() {
			v, _ := settings.Get(key)
			values[key] = v
			if humanOutput {
				fmt.Printf("%-26s %s\n", key+":", v)
			}
		}
		if !humanOutput {
			outputJSON(values)
		}
	case 1:
		v, err := settings.Get(args[0])
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		if humanOutput {
			fmt.Println(v)
		} else {
			outputJSON(map[string]string{args[0]: v})
		}
	default:
		if err := settings.Set(args[0], args[1]); err != nil {
			code := ExitDataError
			if errors.Is(err, config.ErrUnknownKey) {
				code = ExitConfigError
			}
			exitWithError(code, "%v", err)
		}
		if err := settings.Save(config.SettingsPath()); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		v, _ := settings.Get(args[0])
		if humanOutput {
			fmt.Printf("%s = %s\n", args[0], v)
		} else {
			outputJSON(map[string]string{args[0]: v})
		}
	}
	return nil
}

var openCmd = &cobra.Command{
	Use:   "open <id> [position]",
	Short: "Open a document's attachment in a viewer",
	Long: `Open the attachment at [position] (default 0) of document <id> in the
configured viewer.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := mustParseIDs(args[:1])[0]
	position := 0
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			exitWithError(ExitError, "invalid position %q", args[1])
		}
		position = n
	}

	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	path, err := s.FilePath(id, position)
	if err != nil {
		exitWithFailure(err, "locating attachment")
	}
	if err := pdf.NewOpener(openViewer).Open(path); err != nil {
		exitWithFailure(err, "opening attachment")
	}
	if humanOutput {
		outputHuman("Opened %s\n", path)
	} else {
		outputJSON(StatusResponse{Status: "opened", Path: path})
	}
	return nil
}
