package attach

import (
	"fmt"

	"github.com/Bios-Marcel/wastebasket/v2"
)

//go:generate mockgen -destination=mocks/mock_trasher.go -package=mocks github.com/matsen/shelf/internal/attach Trasher

// Trasher moves files to the operating system's trash.
type Trasher interface {
	Trash(path string) error
}

// NewTrasher returns the trash of the running platform: the freedesktop.org
// home trash on Linux and BSD, the Finder trash on macOS and the Recycle Bin
// on Windows.
func NewTrasher() Trasher {
	return systemTrash{trash: wastebasket.Trash}
}

type systemTrash struct {
	trash func(paths ...string) error
}

// Trash moves path into the trash.
func (t systemTrash) Trash(path string) error {
	if err := t.trash(path); err != nil {
		return fmt.Errorf("moving %s to trash: %w", path, err)
	}
	return nil
}
