package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/x/vt"
)

// ScreenReader wraps a virtual terminal emulator so raw output, cursor
// movement included, can be read back as the text a person would see.
type ScreenReader struct {
	emu *vt.SafeEmulator
}

// NewScreenReader creates a virtual terminal with the given dimensions.
// They should match what was announced to the server.
func NewScreenReader(cols, rows int) *ScreenReader {
	return &ScreenReader{
		emu: vt.NewSafeEmulator(cols, rows),
	}
}

func (sr *ScreenReader) Write(data []byte) (int, error) {
	return sr.emu.Write(data)
}

func (sr *ScreenReader) WriteString(s string) (int, error) {
	return sr.emu.Write([]byte(s))
}

// Screen returns the current screen as plain text with trailing blanks on
// each line and trailing empty lines removed.
func (sr *ScreenReader) Screen() string {
	lines := strings.Split(sr.emu.String(), "\n")
	lastNonEmpty := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimRight(lines[i], " \t\r") != "" {
			lastNonEmpty = i
			break
		}
	}

	if lastNonEmpty < 0 {
		return ""
	}

	trimmed := make([]string, lastNonEmpty+1)
	for i := 0; i <= lastNonEmpty; i++ {
		trimmed[i] = strings.TrimRight(lines[i], " \t\r")
	}
	return strings.Join(trimmed, "\n")
}

// HeadlessWidget renders into a ScreenReader instead of a real terminal.
// Input is read a line at a time and each line is submitted with a
// carriage return. When destroyed it prints the final screen to the mount.
type HeadlessWidget struct {
	screen *ScreenReader
	input  io.Reader
	onEOF  func()

	mu        sync.Mutex
	out       io.Writer
	onData    func(string)
	destroyed bool
}

// NewHeadlessWidget reads input lines from input. onEOF, if set, runs once
// input is exhausted, unless the widget was destroyed first.
func NewHeadlessWidget(g Geometry, input io.Reader, onEOF func()) *HeadlessWidget {
	return &HeadlessWidget{
		screen: NewScreenReader(g.Cols, g.Rows),
		input:  input,
		onEOF:  onEOF,
	}
}

func (h *HeadlessWidget) Open(mount io.Writer) error {
	h.mu.Lock()
	h.out = mount
	h.mu.Unlock()

	if h.input != nil {
		go h.readLines()
	}
	return nil
}

func (h *HeadlessWidget) readLines() {
	scanner := bufio.NewScanner(h.input)
	for scanner.Scan() {
		h.mu.Lock()
		fn, done := h.onData, h.destroyed
		h.mu.Unlock()
		if done {
			return
		}
		if fn != nil {
			fn(scanner.Text() + "\r")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Headless read error: %v\n", err)
	}

	h.mu.Lock()
	done := h.destroyed
	h.mu.Unlock()
	if !done && h.onEOF != nil {
		h.onEOF()
	}
}

func (h *HeadlessWidget) Write(text string) {
	h.screen.WriteString(text)
}

func (h *HeadlessWidget) OnData(fn func(data string)) {
	h.mu.Lock()
	h.onData = fn
	h.mu.Unlock()
}

func (h *HeadlessWidget) Screen() string {
	return h.screen.Screen()
}

func (h *HeadlessWidget) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.onData = nil
	if h.out != nil {
		if screen := h.screen.Screen(); screen != "" {
			fmt.Fprintln(h.out, screen)
		}
	}
}
