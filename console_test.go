package main

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConsole opens a console widget on the read end of a pipe. Pipes are
// not terminals, so raw mode is skipped.
func pipeConsole(t *testing.T, onEscape func()) (*ConsoleWidget, *os.File, *syncBuffer) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	c := NewConsoleWidget(r, onEscape)
	out := &syncBuffer{}
	require.NoError(t, c.Open(out))

	// The input loop polls r until it returns; close the pipe only after.
	t.Cleanup(func() {
		c.Destroy()
		waitReadDone(t, c)
		w.Close()
		r.Close()
	})
	return c, w, out
}

func waitReadDone(t *testing.T, c *ConsoleWidget) {
	t.Helper()
	select {
	case <-c.ReadDone():
	case <-time.After(waitFor):
		t.Fatal("console input loop did not stop")
	}
}

type inputLog struct {
	mu   sync.Mutex
	data bytes.Buffer
}

func (l *inputLog) add(s string) {
	l.mu.Lock()
	l.data.WriteString(s)
	l.mu.Unlock()
}

func (l *inputLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.data.String()
}

func TestConsoleWidgetRelaysInput(t *testing.T) {
	c, w, _ := pipeConsole(t, nil)
	var in inputLog
	c.OnData(in.add)

	w.Write([]byte("echo hi\r"))
	require.Eventually(t, func() bool { return in.String() == "echo hi\r" }, waitFor, tick)

	c.Destroy()
}

func TestConsoleWidgetEscapeDetaches(t *testing.T) {
	escaped := make(chan struct{})
	c, w, _ := pipeConsole(t, func() { close(escaped) })
	var in inputLog
	c.OnData(in.add)

	w.Write([]byte("ab\x1dcd"))

	select {
	case <-escaped:
	case <-time.After(waitFor):
		t.Fatal("escape key not handled")
	}
	assert.Equal(t, "ab", in.String())

	w.Write([]byte("more"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "ab", in.String())
	c.Destroy()
}

func TestConsoleWidgetWritesOutputUntilDestroyed(t *testing.T) {
	c, w, out := pipeConsole(t, nil)
	var in inputLog
	c.OnData(in.add)

	c.Write("\x1b[1mhello\x1b[0m")
	c.Destroy()
	c.Write("late")

	assert.Equal(t, "\x1b[1mhello\x1b[0m\r\n", out.String())

	w.Write([]byte("ignored"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, in.String())
}

func TestConsoleWidgetReadDone(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	c := NewConsoleWidget(r, nil)
	assert.Nil(t, c.ReadDone())
	require.NoError(t, c.Open(&syncBuffer{}))

	select {
	case <-c.ReadDone():
		t.Fatal("input loop stopped before destroy")
	default:
	}

	c.Destroy()
	waitReadDone(t, c)
}

func TestConsoleWidgetReadDoneAfterEscape(t *testing.T) {
	escaped := make(chan struct{})
	c, w, _ := pipeConsole(t, func() { close(escaped) })

	w.Write([]byte{escapeKey})
	<-escaped
	waitReadDone(t, c)
}
