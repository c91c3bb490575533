package attach

import (
	"errors"
	"strings"
	"testing"
)

func TestSystemTrash(t *testing.T) {
	var got []string
	ok := systemTrash{trash: func(paths ...string) error {
		got = append(got, paths...)
		return nil
	}}
	if err := ok.Trash("/lib/_collections/a.pdf"); err != nil {
		t.Fatalf("Trash() error = %v", err)
	}
	if len(got) != 1 || got[0] != "/lib/_collections/a.pdf" {
		t.Errorf("trashed %v, want the one path", got)
	}

	full := errors.New("trash full")
	failing := systemTrash{trash: func(...string) error { return full }}
	err := failing.Trash("/lib/_collections/b.pdf")
	if !errors.Is(err, full) {
		t.Fatalf("Trash() error = %v, want wrapped %v", err, full)
	}
	if !strings.Contains(err.Error(), "b.pdf") {
		t.Errorf("Trash() error %q does not name the file", err)
	}
}
