// Package imagegen renders a fusion image through the Stability image API and
// returns it as a self-contained data URI.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/mtzanidakis/digifuse/internal/staging"
)

const (
	maxImageBytes = 32 << 20
	maxLoggedBody = 500
)

type Options struct {
	APIKey       string
	KeyPrefix    string
	Endpoint     string
	OutputFormat string
	Timeout      time.Duration
	// MaxBytes caps the accepted image size. Zero means 32 MiB.
	MaxBytes int64
}

var errImageTooLarge = errors.New("generated image too large")

type Generator struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "jpeg"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = maxImageBytes
	}
	return &Generator{
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
}

// Render generates an image for prompt, stages it in arena under a key
// derived from fusionName and returns it as a data URI. Every failure is
// logged and reported as ok == false.
func (g *Generator) Render(ctx context.Context, arena *staging.Arena, prompt, fusionName string) (string, bool) {
	if g.opts.APIKey == "" {
		g.logger.Warn("image generation credential missing")
		return "", false
	}
	if !strings.HasPrefix(g.opts.APIKey, g.opts.KeyPrefix) {
		g.logger.Error("image generation credential has invalid format", "expected_prefix", g.opts.KeyPrefix)
		return "", false
	}

	status, body, err := g.request(ctx, prompt)
	if errors.Is(err, errImageTooLarge) {
		g.logger.Error("generated image too large", "limit", g.opts.MaxBytes)
		return "", false
	}
	if err != nil {
		g.logger.Error("image generation request failed",
			"error", err,
			"code", errorCode(err),
			"timeout", isTimeout(err))
		return "", false
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		g.logger.Error("image generation rejected: invalid credential", "status", status)
		return "", false
	case http.StatusPaymentRequired:
		g.logger.Error("image generation rejected: insufficient credits", "status", status)
		return "", false
	default:
		g.logger.Error("image generation failed", "status", status, "body", truncate(string(body), maxLoggedBody))
		return "", false
	}

	return g.stage(arena, body, fusionName)
}

func (g *Generator) request(ctx context.Context, prompt string) (int, []byte, error) {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return 0, nil, fmt.Errorf("write prompt field: %w", err)
	}
	if err := mw.WriteField("output_format", g.opts.OutputFormat); err != nil {
		return 0, nil, fmt.Errorf("write output_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.Endpoint, &form)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	req.Header.Set("Accept", "image/*")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.opts.MaxBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > g.opts.MaxBytes {
		if resp.StatusCode == http.StatusOK {
			return resp.StatusCode, nil, errImageTooLarge
		}
		body = body[:g.opts.MaxBytes]
	}
	return resp.StatusCode, body, nil
}

func (g *Generator) stage(arena *staging.Arena, data []byte, fusionName string) (string, bool) {
	key := staging.SanitizeKey(fusionName)
	ext := g.opts.OutputFormat

	path, err := arena.Write(key, ext, data)
	if err != nil {
		g.logger.Error("failed to stage generated image", "error", err)
		return "", false
	}

	size, err := arena.Size(key, ext)
	if err != nil {
		g.logger.Error("failed to stage generated image", "error", err)
		return "", false
	}
	if size == 0 {
		g.logger.Error("generated image file is empty", "path", path)
		return "", false
	}

	staged, err := arena.Read(key, ext)
	if err != nil {
		g.logger.Error("failed to stage generated image", "error", err)
		return "", false
	}

	g.logger.Debug("fusion image staged", "path", path, "size", size)
	return DataURI(g.opts.OutputFormat, staged), true
}

// DataURI encodes data as a base64 image data URI.
func DataURI(format string, data []byte) string {
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, context.Canceled):
		return "ECANCELED"
	case isTimeout(err):
		return "ETIMEDOUT"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "ENOTFOUND"
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
