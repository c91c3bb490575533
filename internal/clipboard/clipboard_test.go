package clipboard

import (
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"testing"
)

// fakeCopier resolves only the installed commands and records what runs.
func fakeCopier(goos string, wayland bool, installed ...string) (*Copier, *[]string, *string) {
	var ran []string
	var input string
	have := make(map[string]bool)
	for _, name := range installed {
		have[name] = true
	}
	c := &Copier{
		goos:    goos,
		wayland: wayland,
		lookPath: func(name string) (string, error) {
			if have[name] {
				return "/usr/bin/" + name, nil
			}
			return "", exec.ErrNotFound
		},
		run: func(cmd *exec.Cmd) error {
			ran = append(ran, filepath.Base(cmd.Path))
			ran = append(ran, cmd.Args[1:]...)
			data, _ := io.ReadAll(cmd.Stdin)
			input = string(data)
			return nil
		},
	}
	return c, &ran, &input
}

func TestCopyPicksFirstInstalledWriter(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		wayland   bool
		installed []string
		want      []string
	}{
		{"macOS", "darwin", false, []string{"pbcopy"}, []string{"pbcopy"}},
		{"xclip preferred", "linux", false, []string{"xsel", "xclip"}, []string{"xclip", "-selection", "clipboard"}},
		{"xsel fallback", "linux", false, []string{"xsel"}, []string{"xsel", "--clipboard", "--input"}},
		{"wayland first", "linux", true, []string{"xclip", "wl-copy"}, []string{"wl-copy"}},
		{"wayland without wl-copy", "linux", true, []string{"xclip"}, []string{"xclip", "-selection", "clipboard"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ran, input := fakeCopier(tt.goos, tt.wayland, tt.installed...)
			if err := c.Copy("@article{Doe2021,}"); err != nil {
				t.Fatalf("Copy() error = %v", err)
			}
			if len(*ran) != len(tt.want) {
				t.Fatalf("ran %v, want %v", *ran, tt.want)
			}
			for i := range tt.want {
				if (*ran)[i] != tt.want[i] {
					t.Fatalf("ran %v, want %v", *ran, tt.want)
				}
			}
			if *input != "@article{Doe2021,}" {
				t.Errorf("stdin = %q", *input)
			}
		})
	}
}

func TestCopyUnavailable(t *testing.T) {
	for _, goos := range []string{"linux", "plan9"} {
		c, ran, _ := fakeCopier(goos, false)
		if c.Available() {
			t.Errorf("%s: Available() = true with nothing installed", goos)
		}
		if err := c.Copy("x"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("%s: Copy() error = %v, want ErrUnavailable", goos, err)
		}
		if len(*ran) != 0 {
			t.Errorf("%s: ran %v", goos, *ran)
		}
	}
}
