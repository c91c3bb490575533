// Package pdf reads attachment text and opens attachments in a viewer.
package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/matsen/shelf/internal/failure"
)

// ViewerEnv names the environment variable that overrides the viewer.
const ViewerEnv = "SHELF_PDF_VIEWER"

// Opener opens attachments in an external viewer.
type Opener struct {
	viewer string
	goos   string
}

// NewOpener returns an opener using viewer, or the platform default when
// viewer is empty.
func NewOpener(viewer string) *Opener {
	if viewer == "" {
		viewer = os.Getenv(ViewerEnv)
	}
	return &Opener{viewer: viewer, goos: runtime.GOOS}
}

// Open starts the viewer on path and returns without waiting. A missing
// file is FILE_NOT_FOUND and the viewer is never started.
func (o *Opener) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", failure.ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", failure.ErrIO, err)
	}
	cmd, err := o.command(path)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func (o *Opener) command(path string) (*exec.Cmd, error) {
	if o.viewer != "" {
		if o.goos == "darwin" {
			return exec.Command("open", "-a", o.viewer, path), nil
		}
		return exec.Command(o.viewer, path), nil
	}
	switch o.goos {
	case "darwin":
		return exec.Command("open", path), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", path), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path), nil
	}
	return nil, fmt.Errorf("unsupported platform: %s", o.goos)
}
