// Package textgen asks a generative text model to invent a fusion and turns
// its free-form reply into a domain.Draft.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/domain"
)

// ErrMissingCredential is the one failure GenerateDraft reports to its
// caller. Everything else degrades to an empty draft.
var ErrMissingCredential = errors.New("text generation credential missing")

// Model returns the raw text a generative model produced for prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Adapter struct {
	model   Model
	timeout time.Duration
	logger  *slog.Logger
}

// New builds an adapter. A nil model means no credential is configured.
func New(model Model, timeout time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Adapter{model: model, timeout: timeout, logger: logger}
}

// GenerateDraft asks the model for a fusion of nameA and nameB. It returns
// ErrMissingCredential when no model is configured; any other failure yields
// an empty draft and a nil error.
func (a *Adapter) GenerateDraft(ctx context.Context, nameA, nameB string) (domain.Draft, error) {
	if a.model == nil {
		a.logger.Error("text generation credential missing")
		return domain.Draft{}, ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.model.Generate(ctx, BuildPrompt(nameA, nameB))
	if err != nil {
		a.logger.Error("text generation failed", "error", err)
		return domain.Draft{}, nil
	}

	draft, err := ParseDraft(raw)
	if err != nil {
		a.logger.Warn("failed to parse fusion draft", "error", err)
		return domain.Draft{}, nil
	}
	return draft, nil
}

// BuildPrompt renders the single structured prompt sent to the model.
func BuildPrompt(nameA, nameB string) string {
	return fmt.Sprintf(`Combine the Digimon %s and %s into a single fusion Digimon. Provide:
- A creative name for the new Digimon
- A unique description of the fusion (at least 100 words)
- Level: one of Rookie, Champion, Ultimate, Mega
- Type: one of Vaccine, Data, Virus
- A detailed visual description prompt in English for generating the fusion image
Respond with strict JSON containing exactly these keys: { "name": "...", "description": "...", "level": "...", "type": "...", "imagePrompt": "..." }`, nameA, nameB)
}

// ExtractJSON returns the widest {...} span in raw, from the first opening
// brace to the last closing brace.
func ExtractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// ParseDraft decodes the JSON object embedded in raw. Fields that are missing,
// blank or not strings are left nil.
func ParseDraft(raw string) (domain.Draft, error) {
	span, ok := ExtractJSON(raw)
	if !ok {
		return domain.Draft{}, errors.New("no JSON object in response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return domain.Draft{}, fmt.Errorf("decode draft: %w", err)
	}

	return domain.Draft{
		Name:        stringField(fields, "name"),
		Description: stringField(fields, "description"),
		Level:       stringField(fields, "level"),
		Type:        stringField(fields, "type"),
		ImagePrompt: stringField(fields, "imagePrompt"),
	}, nil
}

func stringField(fields map[string]json.RawMessage, key string) *string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
