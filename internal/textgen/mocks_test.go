package textgen

import (
	"bytes"
	"context"
	"log/slog"
)

type fakeModel struct {
	reply       string
	err         error
	calls       int
	lastPrompt  string
	sawDeadline bool
}

func (m *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	_, m.sawDeadline = ctx.Deadline()
	return m.reply, m.err
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}
