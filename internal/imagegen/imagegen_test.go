package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtzanidakis/digifuse/internal/staging"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'f', 'a', 'k', 'e', 0xFF, 0xD9}

type upstream struct {
	srv    *httptest.Server
	hits   atomic.Int32
	prompt atomic.Value
	format atomic.Value
	authz  atomic.Value
	accept atomic.Value
}

func newUpstream(t *testing.T, status int, body []byte, delay time.Duration) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			u.prompt.Store(r.FormValue("prompt"))
			u.format.Store(r.FormValue("output_format"))
		}
		u.authz.Store(r.Header.Get("Authorization"))
		u.accept.Store(r.Header.Get("Accept"))
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newGenerator(endpoint, key string, timeout time.Duration) (*Generator, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g := New(Options{
		APIKey:       key,
		KeyPrefix:    "sk-",
		Endpoint:     endpoint,
		OutputFormat: "jpeg",
		Timeout:      timeout,
	}, logger)
	return g, &buf
}

func newArena(t *testing.T) *staging.Arena {
	t.Helper()
	return staging.NewRoot(t.TempDir()).NewArena()
}

func TestRender_Success(t *testing.T) {
	up := newUpstream(t, http.StatusOK, jpegBytes, 0)
	g, _ := newGenerator(up.srv.URL, "sk-valid", time.Second)
	arena := newArena(t)

	uri, ok := g.Render(context.Background(), arena, "orange wolf dinosaur", "Agu@bumon!")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, decoded)

	assert.Equal(t, "orange wolf dinosaur", up.prompt.Load())
	assert.Equal(t, "jpeg", up.format.Load())
	assert.Equal(t, "Bearer sk-valid", up.authz.Load())
	assert.Equal(t, "image/*", up.accept.Load())

	// The staged file stays until the arena owner removes it.
	_, err = os.Stat(filepath.Join(arena.Dir(), "Agu_bumon_.jpeg"))
	assert.NoError(t, err)
}

func TestRender_MissingCredential(t *testing.T) {
	up := newUpstream(t, http.StatusOK, jpegBytes, 0)
	g, buf := newGenerator(up.srv.URL, "", time.Second)

	uri, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.Empty(t, uri)
	assert.Equal(t, int32(0), up.hits.Load())
	assert.Contains(t, buf.String(), "image generation credential missing")
}

func TestRender_InvalidKeyFormat(t *testing.T) {
	up := newUpstream(t, http.StatusOK, jpegBytes, 0)
	g, buf := newGenerator(up.srv.URL, "pk-not-a-secret", time.Second)

	_, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.Equal(t, int32(0), up.hits.Load(), "no network call for a malformed key")
	assert.Contains(t, buf.String(), "invalid format")
}

func TestRender_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		marker string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"bad key"}`, "invalid credential"},
		{"payment required", http.StatusPaymentRequired, `{"message":"no credits"}`, "insufficient credits"},
		{"server error", http.StatusInternalServerError, `{"message":"exploded"}`, "image generation failed"},
		{"bad request", http.StatusBadRequest, `{"message":"prompt too long"}`, "prompt too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, tt.status, []byte(tt.body), 0)
			g, buf := newGenerator(up.srv.URL, "sk-valid", time.Second)
			arena := newArena(t)

			uri, ok := g.Render(context.Background(), arena, "prompt", "Agubumon")
			assert.False(t, ok)
			assert.Empty(t, uri)
			assert.Contains(t, buf.String(), tt.marker)

			_, err := os.Stat(arena.Dir())
			assert.True(t, os.IsNotExist(err), "nothing is staged for a failed response")
		})
	}
}

func TestRender_LongErrorBodyTruncated(t *testing.T) {
	long := strings.Repeat("x", 2000)
	up := newUpstream(t, http.StatusInternalServerError, []byte(long), 0)
	g, buf := newGenerator(up.srv.URL, "sk-valid", time.Second)

	_, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.NotContains(t, buf.String(), long)
	assert.Contains(t, buf.String(), strings.Repeat("x", maxLoggedBody)+"...")
}

func TestRender_EmptyImage(t *testing.T) {
	up := newUpstream(t, http.StatusOK, nil, 0)
	g, buf := newGenerator(up.srv.URL, "sk-valid", time.Second)

	uri, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.Empty(t, uri)
	assert.Contains(t, buf.String(), "generated image file is empty")
}

func TestRender_Timeout(t *testing.T) {
	up := newUpstream(t, http.StatusOK, jpegBytes, 500*time.Millisecond)
	g, buf := newGenerator(up.srv.URL, "sk-valid", 50*time.Millisecond)

	_, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "image generation request failed")
	assert.Contains(t, buf.String(), "timeout=true")
}

func TestRender_ConnectionRefused(t *testing.T) {
	up := newUpstream(t, http.StatusOK, jpegBytes, 0)
	endpoint := up.srv.URL
	up.srv.Close()

	g, buf := newGenerator(endpoint, "sk-valid", time.Second)
	_, ok := g.Render(context.Background(), newArena(t), "prompt", "Agubumon")
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "image generation request failed")
	assert.Contains(t, buf.String(), "ECONNREFUSED")
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", DataURI("png", []byte{1, 2}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))

	// "デジモン" is 12 bytes; a cut at 4 or 5 lands inside the second rune.
	for _, n := range []int{4, 5} {
		got := truncate("デジモン", n)
		assert.True(t, utf8.ValidString(got), "cut at %d: %q", n, got)
		assert.Equal(t, "デ...", got)
	}
	assert.Equal(t, "デジ...", truncate("デジモン", 6))
}

func TestRender_OversizedImageRejected(t *testing.T) {
	tests := []struct {
		name string
		size int
		ok   bool
	}{
		{"at limit", 1024, true},
		{"one byte over", 1025, false},
		{"far over", 64 << 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, http.StatusOK, bytes.Repeat([]byte{0xAB}, tt.size), 0)
			var buf bytes.Buffer
			g := New(Options{
				APIKey:       "sk-valid",
				KeyPrefix:    "sk-",
				Endpoint:     up.srv.URL,
				OutputFormat: "jpeg",
				Timeout:      time.Second,
				MaxBytes:     1024,
			}, slog.New(slog.NewTextHandler(&buf, nil)))
			arena := newArena(t)

			uri, ok := g.Render(context.Background(), arena, "prompt", "Agubumon")
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
				return
			}
			assert.Empty(t, uri)
			assert.Contains(t, buf.String(), "generated image too large")
			_, err := os.Stat(arena.Dir())
			assert.True(t, os.IsNotExist(err), "nothing should be staged")
		})
	}
}

func TestNew_DefaultMaxBytes(t *testing.T) {
	g := New(Options{}, nil)
	assert.Equal(t, int64(maxImageBytes), g.opts.MaxBytes)
}
