package main

import (
	"fmt"
	"io"
	"sync"
)

// Widget is a terminal emulator surface: it renders output and emits the
// user's input as text chunks.
type Widget interface {
	// Open mounts the widget; output it renders goes to mount.
	Open(mount io.Writer) error
	// Write renders raw terminal output.
	Write(text string)
	// OnData subscribes to input. There is at most one subscriber.
	OnData(fn func(data string))
	// Destroy unmounts the widget and stops input. Safe to call once.
	Destroy()
}

// WidgetFactory builds a widget for a grid.
type WidgetFactory func(g Geometry) Widget

// TerminalView is a widget sized and mounted for one connection.
type TerminalView struct {
	Cols  int
	Rows  int
	mount io.Writer

	widget Widget
	once   sync.Once
}

func newTerminalView(w Widget, g Geometry, mount io.Writer) *TerminalView {
	return &TerminalView{
		Cols:   g.Cols,
		Rows:   g.Rows,
		mount:  mount,
		widget: w,
	}
}

func (v *TerminalView) open() error {
	if err := v.widget.Open(v.mount); err != nil {
		return fmt.Errorf("open %dx%d view: %w", v.Cols, v.Rows, err)
	}
	return nil
}

// Write hands output to the widget verbatim.
func (v *TerminalView) Write(text string) {
	v.widget.Write(text)
}

// Destroy tears the widget down exactly once.
func (v *TerminalView) Destroy() {
	v.once.Do(v.widget.Destroy)
}
