package main

import (
	"io"

	"github.com/fatih/color"
)

// NoticeKind classifies what the user is being told.
type NoticeKind int

const (
	NoticeValidation NoticeKind = iota
	NoticeTransport
	NoticeNoConnection
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeValidation:
		return "validation"
	case NoticeTransport:
		return "transport"
	case NoticeNoConnection:
		return "no-connection"
	}
	return "unknown"
}

// Notifier shows a message to the user. It never fails.
type Notifier interface {
	Notify(kind NoticeKind, msg string)
}

var (
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed)
)

// ConsoleNotifier prints notices to a writer, usually stderr.
type ConsoleNotifier struct {
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (c *ConsoleNotifier) Notify(kind NoticeKind, msg string) {
	switch kind {
	case NoticeTransport:
		errorColor.Fprintf(c.out, "❌ %s\n", msg)
	default:
		warnColor.Fprintf(c.out, "⚠ %s\n", msg)
	}
}
