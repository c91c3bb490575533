package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/matsen/shelf/internal/catalog"
	"github.com/matsen/shelf/internal/doi"
	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/reference"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int64
		wantErr bool
	}{
		{"single", []string{"3"}, []int64{3}, false},
		{"several", []string{"3", "10"}, []int64{3, 10}, false},
		{"not a number", []string{"3", "x"}, nil, true},
		{"zero", []string{"0"}, nil, true},
		{"negative", []string{"-1"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIDs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) && !tt.wantErr {
				t.Errorf("parseIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: document 9", failure.ErrNotFound), ExitNotFound},
		{fmt.Errorf("%w: a.pdf", failure.ErrFileNotFound), ExitNotFound},
		{failure.ErrInvalidMove, ExitDataError},
		{failure.ErrDuplicateSiblingName, ExitDataError},
		{fmt.Errorf("building: %w", failure.ErrIndex), ExitIndexError},
		{failure.ErrCancelled, ExitCancelled},
		{doi.ErrNotFound, ExitNotFound},
		{fmt.Errorf("%w: %q", doi.ErrInvalidDOI, "nope"), ExitDataError},
		{fmt.Errorf("disk full"), ExitError},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString(short) = %q", got)
	}
	if got := truncateString("Ünïcödé title here", 10); got != "Ünïcödé..." {
		t.Errorf("truncateString() = %q, want rune-safe cut", got)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four five", 9, "  ")
	want := "one two\n  three\n  four five"
	if got != want {
		t.Errorf("wrapText() = %q, want %q", got, want)
	}
}

func TestFormatAuthorsShort(t *testing.T) {
	authors := []reference.Author{
		{First: "Jane", Last: "Doe"},
		{First: "Émile", Last: "Roe"},
		{Last: "Poe"},
		{First: "Al", Last: "Zed"},
	}
	if got, want := formatAuthorsShort(authors, 3), "Doe J, Roe É, Poe, et al."; got != want {
		t.Errorf("formatAuthorsShort() = %q, want %q", got, want)
	}
}

func TestRenderTree(t *testing.T) {
	nodes := []*catalog.TreeNode{
		{
			Folder: reference.Folder{ID: reference.AllFolderID, Name: "All"},
			Count:  3,
			Children: []*catalog.TreeNode{
				{Folder: reference.Folder{ID: "1", Name: "Papers", ParentID: reference.RootParentID}, Count: 2},
			},
		},
		{Folder: reference.Folder{ID: reference.TrashFolderID, Name: "Trash"}, Count: 0},
	}
	got := renderTree("lib", nodes)
	for _, want := range []string{"lib", "All [-1] (3)", "Papers [1] (2)", "Trash [-3] (0)"} {
		if !strings.Contains(got, want) {
			t.Errorf("renderTree() missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "All") > strings.Index(got, "Papers") {
		t.Errorf("renderTree() should list children after their parent:\n%s", got)
	}
}

func TestPlainSnippet(t *testing.T) {
	if got := plainSnippet("the <b>tree</b>\nof life"); got != "the tree of life" {
		t.Errorf("plainSnippet() = %q", got)
	}
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		want        bool
	}{
		{"no terminal saves", "", false, true},
		{"yes", "y\n", true, true},
		{"empty answer saves", "\n", true, true},
		{"no", "no\n", true, false},
		{"asks again", "maybe\nn\n", true, false},
		{"end of input saves", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := &terminalPrompter{in: strings.NewReader(tt.input), out: &out, interactive: tt.interactive}
			got, err := p.ConfirmSave(2)
			if err != nil {
				t.Fatalf("ConfirmSave() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ConfirmSave() = %v, want %v", got, tt.want)
			}
			if tt.interactive && !strings.Contains(out.String(), "Save 2 pending change(s)?") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestFilterByAuthors(t *testing.T) {
	byAuthors := func(id int64, authors ...reference.Author) *reference.Document {
		d := reference.New()
		d.ID = id
		d.SetAuthors(authors)
		return d
	}
	docs := []*reference.Document{
		byAuthors(1, reference.Author{First: "Janet Q", Last: "Doe"}, reference.Author{First: "Rick", Last: "Roe"}),
		byAuthors(2, reference.Author{First: "John", Last: "Doe"}),
		byAuthors(3, reference.Author{First: "Ann", Last: "Doerr"}),
	}

	tests := []struct {
		name    string
		queries []string
		want    []int64
	}{
		{"no filter", nil, []int64{1, 2, 3}},
		{"last name", []string{"doe"}, []int64{1, 2}},
		{"first name prefix", []string{"Jan Doe"}, []int64{1}},
		{"last, first", []string{"Doe, J"}, []int64{1, 2}},
		{"every query must match", []string{"Doe", "Roe"}, []int64{1}},
		{"no match", []string{"Poe"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, d := range filterByAuthors(docs, tt.queries) {
				got = append(got, d.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("filterByAuthors(%v) = %v, want %v", tt.queries, got, tt.want)
			}
		})
	}
}
