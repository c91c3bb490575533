package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matsen/shelf/internal/attach"
	"github.com/matsen/shelf/internal/clipboard"
	"github.com/matsen/shelf/internal/config"
	"github.com/matsen/shelf/internal/importer"
	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/session"
	"github.com/matsen/shelf/internal/worker"
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importRecordsCmd)
	importCmd.AddCommand(importMendeleyCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(exportCmd)
	for _, format := range []string{session.FormatBib, session.FormatRIS, session.FormatJSONL} {
		exportCmd.AddCommand(newExportCmd(format))
	}

	importRecordsCmd.Flags().StringVar(&importFolder, "folder", "", "Folder id to file the imported documents into")
	importMendeleyCmd.Flags().StringVar(&initDir, "dir", "", "Storage folder (default: saving/storage_folder, then the current directory)")
	importMendeleyCmd.Flags().BoolVar(&importIndex, "index", false, "Build the full-text index of the imported attachments")
	importMendeleyCmd.Flags().BoolVar(&initNoSelect, "no-select", false, "Do not make the new library the current one")
	exportCmd.PersistentFlags().BoolVarP(&exportCopy, "copy", "c", false, "Copy to the clipboard instead of printing")
	exportCmd.PersistentFlags().StringVarP(&exportOutput, "output", "o", "", "Write to this file (.bib files are appended to, skipping entries already present)")
}

var (
	importFolder string
	importIndex  bool
	exportOutput string
	exportCopy   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import documents from other sources",
}

var importRecordsCmd = &cobra.Command{
	Use:   "records <file>",
	Short: "Import a JSONL records file or a Paperpile JSON export",
	Long: `Import document records into the current library. Records whose DOI is
already in the library are skipped. Relative attachment paths are resolved
against the records file.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportRecords,
}

func runImportRecords(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	res, err := s.ImportRecords(ctx, args[0], importFolder)
	if err != nil {
		exitWithFailure(err, "importing records")
	}
	if !humanOutput {
		outputJSON(res)
		return nil
	}
	outputHuman("Imported %d document(s), skipped %d already present\n", len(res.Added), res.Skipped)
	for _, f := range res.Failed {
		outputHuman("  %s %s: %s\n", f.Kind, f.ID, f.Detail)
	}
	return nil
}

var importMendeleyCmd = &cobra.Command{
	Use:   "mendeley <catalog.sqlite> <name>",
	Short: "Create a library from a Mendeley Desktop catalog",
	Long: `Create a new library called <name> from a Mendeley Desktop SQLite catalog.
Folders are recreated; documents in no folder go to Default_Mendeley.
Attachments are copied into the library and renamed after their metadata.`,
	Args: cobra.ExactArgs(2),
	RunE: runImportMendeley,
}

func runImportMendeley(cmd *cobra.Command, args []string) error {
	ctx := logging.WithLogger(cmd.Context(), logger)
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
	lib := config.NewLibrary(dir, args[1])

	master := worker.NewMaster(worker.DefaultWorkers, logger)
	res, err := importer.ImportMendeley(ctx, args[0], lib, importer.MendeleyOptions{
		Index:   importIndex,
		Master:  master,
		Trasher: attach.NewTrasher(),
		Logger:  logger,
	})
	if err != nil {
		exitWithFailure(err, "importing Mendeley catalog")
	}

	if !initNoSelect {
		settings.Saving.StorageFolder = dir
		settings.Saving.CurrentLibFolder = lib.Folder
		if err := settings.Save(config.SettingsPath()); err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
	}

	if !humanOutput {
		outputJSON(res)
		return nil
	}
	outputHuman("Created library %s: %d document(s), %d folder(s), %d file(s)\n",
		lib.Name, res.Documents, res.Folders, res.Files)
	if n := len(res.MissingFiles); n > 0 {
		outputHuman("  %d attachment(s) not found on disk\n", n)
	}
	for _, f := range res.Report.Failed {
		outputHuman("  not imported: %s %s: %s\n", f.Kind, f.ID, f.Detail)
	}
	return nil
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the full-text index of attachments",
	Long: `Index the text of every attachment so 'shelf search --field PDF' can find
it. Files whose content is unchanged since the last run are skipped.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	if humanOutput {
		s.Master().SetProgressSink(worker.ProgressFunc(func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rIndexed %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}))
	}
	stats, err := s.BuildFullTextIndex(ctx)
	if err != nil {
		exitWithFailure(err, "building index")
	}
	if !humanOutput {
		outputJSON(stats)
		return nil
	}
	size := ""
	if info, err := s.Info(); err == nil && info.FullText {
		size = ", index is " + humanize.Bytes(uint64(info.FullTextSize))
	}
	outputHuman("Indexed %d file(s), %d unchanged, %d failed in %s%s\n",
		stats.FilesIndexed, stats.FilesUnchanged, stats.FilesFailed, stats.Duration.Round(time.Millisecond), size)
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export documents as BibTeX, RIS or JSONL",
}

func newExportCmd(format string) *cobra.Command {
	return &cobra.Command{
		Use:   format + " [id]...",
		Short: fmt.Sprintf("Export documents as %s (default: every document in All)", format),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids := mustParseIDs(args)
			s := mustOpenSession(ctx)
			defer closeSession(ctx, s)

			if exportOutput == "" {
				text, err := s.Export(format, ids)
				if err != nil {
					exitWithFailure(err, "exporting")
				}
				if !exportCopy {
					fmt.Print(text)
					return nil
				}
				if err := clipboard.New().Copy(text); err != nil {
					exitWithError(ExitError, "copying to clipboard: %v", err)
				}
				if humanOutput {
					outputHuman("Copied %d byte(s) to the clipboard\n", len(text))
				} else {
					outputJSON(StatusResponse{Status: "copied", IDs: ids})
				}
				return nil
			}

			res, err := s.ExportFile(format, ids, exportOutput)
			if err != nil {
				exitWithFailure(err, "exporting")
			}
			if humanOutput {
				outputHuman("Wrote %d entr(ies) to %s", res.Written, res.Path)
				if res.Skipped > 0 {
					outputHuman(", %d already present", res.Skipped)
				}
				outputHuman("\n")
			} else {
				outputJSON(res)
			}
			return nil
		},
	}
}
