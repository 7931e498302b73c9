package main

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// ConsoleDisplay measures the terminal window attached to a file, usually
// stdout. The kernel's winsize carries both the character grid and, on
// terminals that fill it in, the pixel size of the window.
type ConsoleDisplay struct {
	file *os.File
}

func NewConsoleDisplay(f *os.File) *ConsoleDisplay {
	return &ConsoleDisplay{file: f}
}

// winsize returns the window size. Windows has no TIOCGWINSZ, so the
// grid comes from x/term there and pixels stay zero.
func (c *ConsoleDisplay) winsize() (*pty.Winsize, error) {
	ws, err := pty.GetsizeFull(c.file)
	if err == nil && ws.Cols > 0 && ws.Rows > 0 {
		return ws, nil
	}
	cols, rows, terr := term.GetSize(int(c.file.Fd()))
	if terr != nil {
		if err != nil {
			return nil, fmt.Errorf("get window size: %w", err)
		}
		return nil, fmt.Errorf("get window size: %w", terr)
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}, nil
}

func (c *ConsoleDisplay) Viewport() (Viewport, error) {
	ws, err := c.winsize()
	if err != nil {
		return Viewport{}, err
	}
	if ws.X == 0 || ws.Y == 0 {
		return Viewport{
			Size:    Size{Width: float64(ws.Cols), Height: float64(ws.Rows)},
			InCells: true,
		}, nil
	}
	return Viewport{Size: Size{Width: float64(ws.X), Height: float64(ws.Y)}}, nil
}

// Probe renders nothing; a terminal's glyphs are uniform, so the box of the
// sample is its length in cells times the pixel cell size.
func (c *ConsoleDisplay) Probe(sample string) (Size, error) {
	ws, err := c.winsize()
	if err != nil {
		return Size{}, err
	}
	if ws.X == 0 || ws.Y == 0 {
		return Size{}, fmt.Errorf("terminal does not report pixel size")
	}
	cellW := float64(ws.X) / float64(ws.Cols)
	cellH := float64(ws.Y) / float64(ws.Rows)
	return Size{Width: cellW * float64(len(sample)), Height: cellH}, nil
}
