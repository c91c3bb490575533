package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter asks on stderr whether pending changes are saved. Without
// a terminal on stdin nobody can answer, so changes are saved.
type terminalPrompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// ConfirmSave asks until it gets a yes or no. An empty answer saves.
func (p *terminalPrompter) ConfirmSave(pending int) (bool, error) {
	if !p.interactive {
		return true, nil
	}
	reader := bufio.NewReader(p.in)
	for {
		fmt.Fprintf(p.out, "Save %d pending change(s)? [Y/n]: ", pending)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return true, nil
			}
			return false, fmt.Errorf("reading answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
