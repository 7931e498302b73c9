package main

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// escapeKey (Ctrl-]) detaches from the remote terminal, as in telnet.
const escapeKey = 0x1d

// ConsoleWidget uses the user's own terminal as the emulator: stdin in raw
// mode is the input, stdout is the screen.
type ConsoleWidget struct {
	in       *os.File
	onEscape func()

	mu       sync.Mutex
	out      io.Writer
	onData   func(string)
	reader   cancelreader.CancelReader
	oldState *term.State
	readDone chan struct{}
}

// NewConsoleWidget reads input from in. onEscape runs on its own goroutine
// when the user presses Ctrl-].
func NewConsoleWidget(in *os.File, onEscape func()) *ConsoleWidget {
	return &ConsoleWidget{in: in, onEscape: onEscape}
}

func (c *ConsoleWidget) Open(mount io.Writer) error {
	reader, err := cancelreader.NewReader(c.in)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.out = mount
	c.reader = reader
	c.readDone = make(chan struct{})
	done := c.readDone
	fd := int(c.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Printf("Warning: couldn't set raw mode: %v\n", err)
		} else {
			c.oldState = state
		}
	}
	c.mu.Unlock()

	go c.readInput(reader, done)
	return nil
}

// ReadDone is closed once the input loop has returned and no longer touches
// the input file. Nil before Open.
func (c *ConsoleWidget) ReadDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readDone
}

func (c *ConsoleWidget) readInput(r cancelreader.CancelReader, done chan struct{}) {
	defer close(done)
	defer r.Close()

	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if i := bytes.IndexByte(chunk, escapeKey); i >= 0 {
				if i > 0 {
					c.emit(string(chunk[:i]))
				}
				if c.onEscape != nil {
					go c.onEscape()
				}
				return
			}
			c.emit(string(chunk))
		}
		if err != nil {
			if !errors.Is(err, cancelreader.ErrCanceled) && err != io.EOF {
				log.Printf("Console read error: %v\n", err)
			}
			return
		}
	}
}

func (c *ConsoleWidget) emit(data string) {
	c.mu.Lock()
	fn := c.onData
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *ConsoleWidget) Write(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return
	}
	io.WriteString(c.out, text)
}

func (c *ConsoleWidget) OnData(fn func(data string)) {
	c.mu.Lock()
	c.onData = fn
	c.mu.Unlock()
}

// Destroy stops the input loop and gives the terminal back in cooked mode.
// It does not wait for the loop; see ReadDone.
func (c *ConsoleWidget) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onData = nil
	if c.reader != nil {
		c.reader.Cancel()
		c.reader = nil
	}
	if c.oldState != nil {
		term.Restore(int(c.in.Fd()), c.oldState)
		c.oldState = nil
	}
	if c.out != nil {
		io.WriteString(c.out, "\r\n")
		c.out = nil
	}
}
