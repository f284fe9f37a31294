package fusion

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/mtzanidakis/digifuse/internal/domain"
	"github.com/mtzanidakis/digifuse/internal/staging"
)

type fakeText struct {
	mu    sync.Mutex
	draft domain.Draft
	err   error
	calls int
}

func (f *fakeText) GenerateDraft(_ context.Context, _, _ string) (domain.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.draft, f.err
}

// fakeImage stages a file in the arena it is handed so tests can verify
// that the orchestrator removes it.
type fakeImage struct {
	mu         sync.Mutex
	uri        string
	ok         bool
	stage      []byte
	calls      int
	lastPrompt string
	lastName   string
	arenaDirs  []string
	panicWith  any
}

func (f *fakeImage) Render(_ context.Context, arena *staging.Arena, prompt, fusionName string) (string, bool) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt = prompt
	f.lastName = fusionName
	f.arenaDirs = append(f.arenaDirs, arena.Dir())
	f.mu.Unlock()

	if f.stage != nil {
		if _, err := arena.Write(staging.SanitizeKey(fusionName), "jpeg", f.stage); err != nil {
			return "", false
		}
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.uri, f.ok
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func ptr(s string) *string { return &s }
