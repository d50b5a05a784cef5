package chart

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

const (
	enterAltScreen = "\x1b[?1049h"
	leaveAltScreen = "\x1b[?1049l"
	clearScreen    = "\x1b[2J\x1b[H"
)

// terminalSurface draws frames on the controlling terminal's alternate
// screen, so the shell's scrollback survives the session.
type terminalSurface struct {
	out *os.File
}

// NewTerminalSurface switches stdout to the alternate screen. It fails when
// stdout is not a terminal.
func NewTerminalSurface() (Surface, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, fmt.Errorf("stdout is not a terminal")
	}
	fmt.Fprint(os.Stdout, enterAltScreen)
	return &terminalSurface{out: os.Stdout}, nil
}

func (s *terminalSurface) Size() (int, int) {
	width, height, err := term.GetSize(int(s.out.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

func (s *terminalSurface) Render(frame string) {
	fmt.Fprint(s.out, clearScreen)
	fmt.Fprint(s.out, frame)
}

// Close restores the primary screen.
func (s *terminalSurface) Close() {
	fmt.Fprint(s.out, leaveAltScreen)
}
