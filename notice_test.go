package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestConsoleNotifier(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	tests := []struct {
		kind NoticeKind
		msg  string
		want string
	}{
		{NoticeValidation, "Please input host!", "⚠ Please input host!\n"},
		{NoticeNoConnection, "No connection!", "⚠ No connection!\n"},
		{NoticeTransport, "Connection error: refused", "❌ Connection error: refused\n"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			var buf bytes.Buffer
			NewConsoleNotifier(&buf).Notify(tt.kind, tt.msg)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNoticeKindString(t *testing.T) {
	assert.Equal(t, "validation", NoticeValidation.String())
	assert.Equal(t, "transport", NoticeTransport.String())
	assert.Equal(t, "no-connection", NoticeNoConnection.String())
	assert.Equal(t, "unknown", NoticeKind(9).String())
}
