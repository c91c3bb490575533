// Package clipboard copies exported citations to the system clipboard through
// the platform's clipboard command.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnavailable is returned when no clipboard command is installed.
var ErrUnavailable = errors.New("clipboard unavailable")

// command is one clipboard writer and the arguments that make it read stdin.
type command struct {
	name string
	args []string
}

// writers lists the clipboard commands per platform in order of preference.
// Wayland's wl-copy comes first on Linux when a Wayland session is running.
func writers(goos string, wayland bool) []command {
	switch goos {
	case "darwin":
		return []command{{name: "pbcopy"}}
	case "windows":
		return []command{{name: "clip"}}
	case "linux", "freebsd", "openbsd":
		cmds := []command{
			{name: "xclip", args: []string{"-selection", "clipboard"}},
			{name: "xsel", args: []string{"--clipboard", "--input"}},
		}
		if wayland {
			cmds = append([]command{{name: "wl-copy"}}, cmds...)
		}
		return cmds
	}
	return nil
}

// Copier writes text to the clipboard.
type Copier struct {
	lookPath func(string) (string, error)
	run      func(cmd *exec.Cmd) error
	goos     string
	wayland  bool
}

// New returns a copier for the running platform.
func New() *Copier {
	return &Copier{
		lookPath: exec.LookPath,
		run:      (*exec.Cmd).Run,
		goos:     runtime.GOOS,
		wayland:  os.Getenv("WAYLAND_DISPLAY") != "",
	}
}

// command returns the first installed clipboard writer.
func (c *Copier) command() (*exec.Cmd, error) {
	for _, w := range writers(c.goos, c.wayland) {
		path, err := c.lookPath(w.name)
		if err != nil {
			continue
		}
		return exec.Command(path, w.args...), nil
	}
	return nil, fmt.Errorf("%w on %s", ErrUnavailable, c.goos)
}

// Available reports whether a clipboard writer is installed.
func (c *Copier) Available() bool {
	_, err := c.command()
	return err == nil
}

// Copy replaces the clipboard contents with text.
func (c *Copier) Copy(text string) error {
	cmd, err := c.command()
	if err != nil {
		return err
	}
	cmd.Stdin = strings.NewReader(text)
	if err := c.run(cmd); err != nil {
		return fmt.Errorf("running %s: %w", cmd.Path, err)
	}
	return nil
}
