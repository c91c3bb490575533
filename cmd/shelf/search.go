package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/conflict"
	"github.com/matsen/shelf/internal/reference"
)

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(lookupCmd)

	searchCmd.Flags().StringSliceVar(&searchFields, "field", nil, "Fields to search (default: search/search_fields); PDF searches attachments")
	searchCmd.Flags().StringVar(&searchFolder, "folder", reference.AllFolderID, "Folder id to search in")
	searchCmd.Flags().BoolVar(&searchNoDescend, "no-descend", false, "Do not include subfolders")

	dupesCmd.Flags().StringVar(&dupesFolder, "folder", reference.AllFolderID, "Folder id to check")
	dupesCmd.Flags().Int64Var(&dupesDoc, "doc", 0, "Only return the group of this document")
	dupesCmd.Flags().IntVar(&dupesMinScore, "min-score", 0, "Override duplicate_min_score (1-100)")

	mergeCmd.Flags().StringArrayVar(&mergePicks, "pick", nil, "field=value for a conflicting field (repeatable)")
	mergeCmd.Flags().StringSliceVar(&mergeFolders, "folders", nil, "Folder ids of the merged document (default: union of the members)")
	mergeCmd.Flags().BoolVar(&mergeShow, "conflicts", false, "Only list the conflicting fields")

	replaceCmd.Flags().StringVar(&replaceKind, "kind", catalog.TermTag, "Term kind: author, publication, keyword or tag")

	lookupCmd.Flags().StringVar(&lookupDOI, "doi", "", "DOI to use instead of the stored one")
}

var (
	searchFields    []string
	searchFolder    string
	searchNoDescend bool

	dupesFolder   string
	dupesDoc      int64
	dupesMinScore int

	mergePicks   []string
	mergeFolders []string
	mergeShow    bool

	replaceKind string
	lookupDOI   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by metadata and attachment text",
	Long: `Search documents. Metadata fields match case-insensitive substrings;
the PDF field searches the full-text index built by 'shelf index'.

Example:
  shelf search --field Title,PDF phylogenetics`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// SearchResult is one search hit with its document summary.
type SearchResult struct {
	DocumentSummary
	Fields   []string          `json:"fields"`
	Snippets map[string]string `json:"snippets,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	req := s.SearchRequest(strings.Join(args, " "), searchFolder)
	if len(searchFields) > 0 {
		req.Fields = searchFields
	}
	if searchNoDescend {
		req.Descend = false
	}
	hits, err := s.Search(ctx, req)
	if err != nil {
		exitWithFailure(err, "searching")
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, err := s.Document(h.DocID)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{DocumentSummary: summarize(doc), Fields: h.Fields, Snippets: h.Snippets})
	}

	if !humanOutput {
		outputJSON(results)
		return nil
	}
	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%5d  %s\n", r.ID, truncateString(r.Title, ListTitleMaxLen))
		fmt.Printf("       matched: %s\n", strings.Join(r.Fields, ", "))
		for _, snippet := range sortedValues(r.Snippets) {
			fmt.Printf("       ...%s...\n", plainSnippet(snippet))
		}
	}
	return nil
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// plainSnippet drops highlight markup for terminal output.
func plainSnippet(s string) string {
	return strings.NewReplacer("<b>", "", "</b>", "", "\n", " ").Replace(s)
}

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Find duplicate documents",
	Long: `Group the documents of a folder that look like duplicates of each other,
scoring title, authors, year and journal. Groups can be merged with 'shelf merge'.`,
	Args: cobra.NoArgs,
	RunE: runDupes,
}

func runDupes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if dupesMinScore != 0 {
		if err := settings.Set("duplicate_min_score", fmt.Sprint(dupesMinScore)); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	groups, err := s.CheckDuplicates(ctx, dupesFolder, dupesDoc)
	if err != nil {
		exitWithFailure(err, "checking duplicates")
	}
	if !humanOutput {
		if groups == nil {
			groups = [][]int64{}
		}
		outputJSON(groups)
		return nil
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}
	for i, g := range groups {
		fmt.Printf("Group %d:\n", i+1)
		for _, id := range g {
			if doc, err := s.Document(id); err == nil {
				printSummary(doc)
			}
		}
	}
	return nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge <id> <id>...",
	Short: "Merge a duplicate group into one document",
	Long: `Merge documents into a new one and move the originals to Trash.

Fields the documents disagree on take the value of the most complete
document unless picked:
  shelf merge 3 7 --conflicts
  shelf merge 3 7 --pick year=2021 --pick "authors=Doe, Jane; Roe, Rick"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ids := mustParseIDs(args)
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	if mergeShow {
		conflicts, err := s.Conflicts(ids)
		if err != nil {
			exitWithFailure(err, "collecting conflicts")
		}
		if !humanOutput {
			outputJSON(conflicts)
			return nil
		}
		if len(conflicts) == 0 {
			fmt.Println("No conflicts")
		}
		for _, c := range conflicts {
			fmt.Printf("%s:\n", c.Field)
			for i, v := range c.Values {
				fmt.Printf("  [%d] %s\n", c.Sources[i], truncateString(v, ListTitleMaxLen))
			}
		}
		return nil
	}

	res := conflict.Resolution{Fields: make(map[string]string)}
	for _, kv := range mergePicks {
		field, value, ok := strings.Cut(kv, "=")
		if !ok {
			exitWithError(ExitError, "invalid --pick %q: want field=value", kv)
		}
		res.Fields[strings.TrimSpace(field)] = value
	}
	if cmd.Flags().Changed("folders") {
		res.Folders = mergeFolders
	}

	id, err := s.MergeGroup(ids, res)
	if err != nil {
		exitWithFailure(err, "merging")
	}
	if humanOutput {
		outputHuman("Merged %d documents into %d\n", len(ids), id)
	} else {
		outputJSON(map[string]interface{}{"status": "merged", "id": id, "trashed": ids})
	}
	return nil
}

var replaceCmd = &cobra.Command{
	Use:   "replace <old> <new>",
	Short: "Rename an author, journal, keyword or tag everywhere",
	Long: `Rename a term across the library. Authors are given as "Last, First".
An empty <new> removes a keyword or tag.

Example:
  shelf replace --kind author "Doe, J" "Doe, Jane"`,
	Args: cobra.ExactArgs(2),
	RunE: runReplace,
}

func runReplace(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	changed, err := s.ReplaceTerm(replaceKind, args[0], args[1])
	if err != nil {
		exitWithFailure(err, "replacing "+replaceKind)
	}
	if humanOutput {
		outputHuman("Changed %d document(s)\n", len(changed))
	} else {
		outputJSON(StatusResponse{Status: "replaced", IDs: changed})
	}
	return nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <id>",
	Short: "Refresh a document's metadata from its DOI",
	Long: `Fetch the Crossref record of a document's DOI and replace its bibliographic
fields. Files, folders, tags, notes and flags are kept; the document is
marked confirmed. Set CROSSREF_MAILTO to use Crossref's polite pool.`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := mustParseIDs(args)[0]
	s := mustOpenSession(ctx)
	defer closeSession(ctx, s)

	doc, err := s.UpdateFromDOI(ctx, id, lookupDOI)
	if err != nil {
		exitWithFailure(err, "looking up DOI")
	}
	if humanOutput {
		printDocumentDetail(doc)
	} else {
		outputJSON(doc)
	}
	return nil
}
