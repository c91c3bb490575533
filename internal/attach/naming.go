package attach

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/matsen/shelf/internal/reference"
)

// MaxPathLen bounds the absolute path of a renamed attachment.
const MaxPathLen = 249

var (
	unsafeChars = regexp.MustCompile(`[<>:"|/\\?*]`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// SanitizeName replaces characters that are unsafe in file names with "_"
// and collapses runs of underscores.
func SanitizeName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	return underscores.ReplaceAllString(name, "_")
}

// TargetName returns the file name an attachment gets in dir.
//
// With renaming the name is <lastName>_<year>_<title><ext>, with _<position>
// before the extension when the document has several files. The title is
// cut so that the absolute path stays within MaxPathLen. Without renaming,
// or when the document has neither author, year nor title, the source base
// name is kept.
func TargetName(doc *reference.Document, src string, position int, rename bool, dir string) string {
	base := filepath.Base(src)
	if !rename || doc == nil {
		return base
	}
	ext := filepath.Ext(base)

	var year string
	if doc.Year != 0 {
		year = strconv.Itoa(doc.Year)
	}
	title := strings.TrimSpace(doc.Title)
	last := strings.TrimSpace(doc.FirstAuthorLast())
	if last == "" && year == "" && title == "" {
		return base
	}

	prefix := last + "_" + year + "_"
	var suffix string
	if len(doc.Files) > 1 {
		suffix = "_" + strconv.Itoa(position)
	}
	suffix += ext

	budget := MaxPathLen - len(filepath.Join(dir, prefix+suffix))
	title = truncateBytes(title, budget)
	name := SanitizeName(prefix + title + suffix)
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

var collisionSuffix = regexp.MustCompile(`_\(\d+\)$`)

// sameStem reports whether have is want, or want with a collision suffix.
func sameStem(have, want string) bool {
	if have == want {
		return true
	}
	ext := filepath.Ext(have)
	if ext != filepath.Ext(want) {
		return false
	}
	stem := collisionSuffix.ReplaceAllString(strings.TrimSuffix(have, ext), "")
	return stem == strings.TrimSuffix(want, ext)
}

// uniqueName returns name, or name with _(1), _(2), … inserted before the
// extension, whichever does not exist in dir yet.
func uniqueName(dir, name string) string {
	if _, err := os.Lstat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_(%d)%s", stem, i, ext)
		if _, err := os.Lstat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}
