package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/shelf/internal/author"
	"github.com/matsen/shelf/internal/reference"
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(addPDFCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(emptyTrashCmd)

	addCmd.Flags().StringVar(&addTitle, "title", "", "Title (required)")
	addCmd.Flags().StringArrayVarP(&addAuthors, "author", "a", nil, `Author as "Last, First" (repeatable)`)
	addCmd.Flags().IntVar(&addYear, "year", 0, "Publication year")
	addCmd.Flags().StringVar(&addDOI, "doi", "", "DOI")
	addCmd.Flags().StringVar(&addJournal, "journal", "", "Journal or publication")
	addCmd.Flags().StringVar(&addType, "type", reference.DefaultType, "Entry type")
	addCmd.Flags().StringArrayVarP(&addTags, "tag", "t", nil, "Tag (repeatable)")
	addCmd.Flags().StringArrayVarP(&addFiles, "file", "f", nil, "Attachment to copy into the library (repeatable)")
	addCmd.Flags().StringVar(&addFolder, "folder", "", "Folder id to file the document into")
	addCmd.Flags().BoolVar(&addUnconfirmed, "review", false, "Leave the document in Needs Review")
	addCmd.MarkFlagRequired("title")

	addPDFCmd.Flags().StringVar(&addFolder, "folder", "", "Folder id to file the documents into")

	listCmd.Flags().StringVar(&listFolder, "folder", reference.AllFolderID, "Folder id (-1 All, -2 Needs Review, -3 Trash)")
	listCmd.Flags().BoolVar(&listDescend, "descend", false, "Include documents of subfolders")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of documents (0 for all)")
	listCmd.Flags().StringArrayVarP(&listAuthors, "author", "a", nil, `Only documents by this author: "Doe", "Jane Doe" or "Doe, Jane" (repeatable, all must match)`)

	updateCmd.Flags().StringArrayVar(&updateSets, "set", nil, "field=value for a scalar field (repeatable)")
	updateCmd.Flags().StringArrayVarP(&addAuthors, "author", "a", nil, `Replace authors, "Last, First" (repeatable)`)
	updateCmd.Flags().StringArrayVarP(&addTags, "tag", "t", nil, "Replace tags (repeatable)")
	updateCmd.Flags().StringVar(&updateRead, "read", "", "Set the read flag (true or false)")
	updateCmd.Flags().StringVar(&updateFavourite, "favourite", "", "Set the favourite flag (true or false)")
	updateCmd.Flags().StringVar(&updateConfirmed, "confirmed", "", "Set the confirmed flag (true or false)")
	updateCmd.Flags().BoolVar(&updateRename, "rename-files", false, "Rename attachments after their metadata")

	attachCmd.Flags().StringVar(&attachDetach, "detach", "", "Relative path of an attachment to remove instead")

	trashCmd.Flags().BoolVar(&trashRestore, "restore", false, "Take the documents out of Trash instead")
}

var (
	addTitle       string
	addAuthors     []string
	addYear        int
	addDOI         string
	addJournal     string
	addType        string
	addTags        []string
	addFiles       []string
	addFolder      string
	addUnconfirmed bool

	listFolder  string
	listDescend bool
	listLimit   int
	listAuthors []string

	updateSets      []string
	updateRead      string
	updateFavourite string
	updateConfirmed string
	updateRename    bool

	attachDetach string
	trashRestore bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a document by hand",
	Long: `Add a document from its metadata. Attachments are copied (or linked, per
saving/file_move_manner) into the library when the command saves.

Example:
  shelf add --title "A Study" -a "Doe, Jane" --year 2021 -f paper.pdf`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc := reference.New()
	doc.Title = addTitle
	doc.Year = addYear
	doc.DOI = addDOI
	doc.Publication = addJournal
	doc.Type = addType
	doc.Tags = addTags
	doc.SetAuthors(parseAuthors(addAuthors))
	doc.Confirmed = reference.BoolFlag(!addUnconfirmed)
	if addFolder != "" {
		doc.Folders = []string{addFolder}
	}

	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	id, err := s.AddDocument(doc, addFiles...)
	if err != nil {
		exitWithFailure(err, "adding document")
	}
	if humanOutput {
		outputHuman("Added document %d\n", id)
	} else {
		outputJSON(StatusResponse{Status: "added", IDs: []int64{id}})
	}
	return nil
}

var addPDFCmd = &cobra.Command{
	Use:   "add-pdf <file>...",
	Short: "Add documents from PDF files",
	Long: `Create one document per PDF, taking the title and DOI from the first pages.
The documents land in Needs Review until confirmed. PDFs whose DOI is
already in the library are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAddPDF,
}

func runAddPDF(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	res, err := s.ImportPDFs(ctx, args, addFolder)
	if err != nil {
		exitWithFailure(err, "importing PDFs")
	}
	if !humanOutput {
		outputJSON(res)
		return nil
	}
	outputHuman("Added %d document(s), skipped %d already present\n", len(res.Added), res.Skipped)
	for _, f := range res.Failed {
		outputHuman("  %s: %s\n", f.Kind, f.Detail)
	}
	return nil
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a single document by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := mustParseIDs(args)[0]
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	doc, err := s.Document(id)
	if err != nil {
		exitWithFailure(err, "getting document")
	}
	if humanOutput {
		printDocumentDetail(doc)
	} else {
		outputJSON(doc)
	}
	return nil
}

func printDocumentDetail(doc *reference.Document) {
	fmt.Printf("%d\n", doc.ID)
	fmt.Println(strings.Repeat("=", DetailTitleMaxLen))
	fmt.Printf("Title:    %s\n", wrapText(doc.Title, TextWrapWidth, "          "))
	if authors := doc.AuthorList(); len(authors) > 0 {
		names := make([]string, len(authors))
		for i, a := range authors {
			names[i] = formatAuthorFull(a)
		}
		fmt.Printf("Authors:  %s\n", wrapText(strings.Join(names, ", "), TextWrapWidth, "          "))
	}
	if doc.Publication != "" {
		fmt.Printf("Journal:  %s\n", doc.Publication)
	}
	if doc.Year > 0 {
		fmt.Printf("Year:     %d\n", doc.Year)
	}
	if doc.DOI != "" {
		fmt.Printf("DOI:      %s\n", doc.DOI)
	}
	if key := doc.CiteKey(); key != "" {
		fmt.Printf("Key:      %s\n", key)
	}
	if len(doc.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(doc.Tags, ", "))
	}
	fmt.Printf("Added:    %s\n", formatAdded(doc.Added))
	if doc.Abstract != "" {
		fmt.Printf("\nAbstract:\n  %s\n", wrapText(doc.Abstract, TextWrapWidth+8, "  "))
	}
	if len(doc.Files) > 0 {
		fmt.Println("\nFiles:")
		for i, f := range doc.Files {
			fmt.Printf("  [%d] %s\n", i, f)
		}
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the documents of a folder",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	docs, err := s.Documents(listFolder, listDescend)
	if err != nil {
		exitWithFailure(err, "listing documents")
	}
	docs = filterByAuthors(docs, listAuthors)
	if listLimit > 0 && len(docs) > listLimit {
		docs = docs[:listLimit]
	}

	if humanOutput {
		if len(docs) == 0 {
			fmt.Println("No documents")
		}
		for _, doc := range docs {
			printSummary(doc)
		}
		return nil
	}
	out := make([]DocumentSummary, len(docs))
	for i, doc := range docs {
		out[i] = summarize(doc)
	}
	outputJSON(out)
	return nil
}

// filterByAuthors keeps the documents matching every author query. Last
// names match exactly and first names by prefix, ignoring case.
func filterByAuthors(docs []*reference.Document, queries []string) []*reference.Document {
	if len(queries) == 0 {
		return docs
	}
	parsed := make([]author.Query, len(queries))
	for i, q := range queries {
		parsed[i] = author.ParseQuery(q)
	}
	var kept []*reference.Document
	for _, doc := range docs {
		if author.AllMatch(parsed, doc.AuthorList()) {
			kept = append(kept, doc)
		}
	}
	return kept
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a document's metadata and flags",
	Long: `Edit a document. Scalar fields are set with --set field=value, for example
--set title="A Study" --set year=2021; an empty value clears the field.

Flags can be set on several documents at once:
  shelf update 3 4 5 --read true`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ids := mustParseIDs(args)
	editing := len(updateSets) > 0 || cmd.Flags().Changed("author") || cmd.Flags().Changed("tag")
	if editing && len(ids) > 1 {
		exitWithError(ExitError, "--set, --author and --tag edit a single document")
	}

	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	if editing {
		doc, err := s.Document(ids[0])
		if err != nil {
			exitWithFailure(err, "getting document")
		}
		for _, kv := range updateSets {
			field, value, ok := strings.Cut(kv, "=")
			if !ok {
				exitWithError(ExitError, "invalid --set %q: want field=value", kv)
			}
			if err := doc.SetField(strings.TrimSpace(field), value); err != nil {
				exitWithError(ExitDataError, "%v", err)
			}
		}
		if cmd.Flags().Changed("author") {
			doc.SetAuthors(parseAuthors(addAuthors))
		}
		if cmd.Flags().Changed("tag") {
			doc.Tags = addTags
		}
		if err := s.UpdateDocument(doc); err != nil {
			exitWithFailure(err, "updating document")
		}
	}

	for flag, value := range map[string]string{"read": updateRead, "favourite": updateFavourite, "confirmed": updateConfirmed} {
		if value == "" {
			continue
		}
		if value != "true" && value != "false" {
			exitWithError(ExitError, "invalid --%s %q: want true or false", flag, value)
		}
		if err := s.SetFlag(ids, flag, value == "true"); err != nil {
			exitWithFailure(err, "setting "+flag)
		}
	}

	renamed := 0
	if updateRename {
		n, err := s.RenameFiles(ids)
		if err != nil {
			exitWithFailure(err, "renaming files")
		}
		renamed = n
	}

	if humanOutput {
		outputHuman("Updated %d document(s)", len(ids))
		if updateRename {
			outputHuman(", renamed %d file(s)", renamed)
		}
		outputHuman("\n")
	} else {
		outputJSON(StatusResponse{Status: "updated", IDs: ids})
	}
	return nil
}

var attachCmd = &cobra.Command{
	Use:   "attach <id> [file]...",
	Short: "Attach files to a document",
	Long: `Attach files to a document; they are placed into the library on save.
With --detach the named attachment is removed and sent to the OS trash.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := mustParseIDs(args[:1])[0]
	files := args[1:]
	if attachDetach == "" && len(files) == 0 {
		exitWithError(ExitError, "no files to attach")
	}

	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	status := "attached"
	if attachDetach != "" {
		if err := s.DetachFile(id, attachDetach); err != nil {
			exitWithFailure(err, "detaching file")
		}
		status = "detached"
	}
	if len(files) > 0 {
		if err := s.AttachFiles(id, files...); err != nil {
			exitWithFailure(err, "attaching files")
		}
	}
	if humanOutput {
		outputHuman("Document %d: %s\n", id, status)
	} else {
		outputJSON(StatusResponse{Status: status, IDs: []int64{id}})
	}
	return nil
}

var trashCmd = &cobra.Command{
	Use:   "trash <id>...",
	Short: "Move documents to Trash",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTrash,
}

func runTrash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ids := mustParseIDs(args)
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	var changed []int64
	var err error
	status := "trashed"
	if trashRestore {
		status = "restored"
		changed, err = s.RestoreDocuments(ids)
	} else {
		changed, err = s.TrashDocuments(ids)
	}
	if err != nil {
		exitWithFailure(err, status)
	}
	if humanOutput {
		outputHuman("%d document(s) %s\n", len(changed), status)
	} else {
		outputJSON(StatusResponse{Status: status, IDs: changed})
	}
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Permanently delete documents",
	Long: `Permanently delete documents. Their attachments are sent to the OS trash
when the command saves.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ids := mustParseIDs(args)
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	deleted, err := s.DeleteDocuments(ids)
	if err != nil {
		exitWithFailure(err, "deleting documents")
	}
	if humanOutput {
		outputHuman("Deleted %d document(s)\n", len(deleted))
	} else {
		outputJSON(StatusResponse{Status: "deleted", IDs: deleted})
	}
	return nil
}

var emptyTrashCmd = &cobra.Command{
	Use:   "empty-trash",
	Short: "Permanently delete everything in Trash",
	Args:  cobra.NoArgs,
	RunE:  runEmptyTrash,
}

func runEmptyTrash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	res, err := s.EmptyTrash()
	if err != nil {
		exitWithFailure(err, "emptying trash")
	}
	if humanOutput {
		outputHuman("Deleted %d folder(s) and %d document(s)\n", len(res.Folders), len(res.Documents))
	} else {
		outputJSON(res)
	}
	return nil
}

// parseAuthors parses "Last, First" or "First Last" names.
func parseAuthors(names []string) []reference.Author {
	authors := make([]reference.Author, 0, len(names))
	for _, n := range names {
		authors = append(authors, reference.ParseAuthor(n))
	}
	return authors
}
