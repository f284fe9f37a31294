// Package fusion sequences text and image generation into a complete
// FusionResult. Every expected upstream failure is absorbed into fallback
// values; callers always get a fully populated result.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/domain"
	"github.com/mtzanidakis/digifuse/internal/staging"
	"github.com/mtzanidakis/digifuse/internal/textgen"
)

const (
	DefaultLevel = "Champion"
	DefaultType  = "Data"

	placeholderBase = "https://via.placeholder.com/512x512/FF6B35/FFFFFF?text="
)

type DraftGenerator interface {
	GenerateDraft(ctx context.Context, nameA, nameB string) (domain.Draft, error)
}

type ImageRenderer interface {
	Render(ctx context.Context, arena *staging.Arena, prompt, fusionName string) (string, bool)
}

type Orchestrator struct {
	text    DraftGenerator
	image   ImageRenderer
	staging *staging.Root
	logger  *slog.Logger
}

func New(text DraftGenerator, image ImageRenderer, root *staging.Root, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		text:    text,
		image:   image,
		staging: root,
		logger:  logger,
	}
}

// Create runs one fusion. Text generation strictly precedes image generation
// and the request's staging arena is removed before returning, even when ctx
// is cancelled or a collaborator panics.
func (o *Orchestrator) Create(ctx context.Context, req domain.FusionRequest) domain.FusionResult {
	start := time.Now()
	arena := o.staging.NewArena()
	defer func() {
		if err := arena.Remove(); err != nil {
			o.logger.Error("staging cleanup failed", "dir", arena.Dir(), "error", err)
		}
	}()

	draft, err := o.text.GenerateDraft(ctx, req.NameA, req.NameB)
	skipImage := false
	if err != nil {
		// A missing credential means the environment is misconfigured; don't
		// spend a second upstream call on it.
		skipImage = errors.Is(err, textgen.ErrMissingCredential)
		if !skipImage {
			o.logger.Warn("text generation returned error", "error", err)
		}
		draft = domain.Draft{}
	}

	result := Assemble(req, draft)

	var (
		image string
		ok    bool
	)
	if !skipImage {
		image, ok = o.image.Render(ctx, arena, result.ImagePrompt, result.Name)
	}
	if ok && image != "" {
		result.FusionImage = image
	} else {
		result.FusionImage = PlaceholderURL(result.Name)
	}

	o.logger.Info("fusion created",
		"a", req.NameA,
		"b", req.NameB,
		"name", result.Name,
		"generated_text", !draft.IsEmpty(),
		"generated_image", ok,
		"duration", time.Since(start))
	return result
}

// Assemble applies field-level defaults to draft. FusionImage is set to the
// placeholder for the assembled name.
func Assemble(req domain.FusionRequest, draft domain.Draft) domain.FusionResult {
	r := domain.FusionResult{
		Name:        or(draft.Name, req.NameA+req.NameB),
		Description: or(draft.Description, FallbackDescription(req.NameA, req.NameB)),
		Level:       or(draft.Level, DefaultLevel),
		Type:        or(draft.Type, DefaultType),
		ImagePrompt: or(draft.ImagePrompt, SyntheticPrompt(req.NameA, req.NameB)),
		OriginalImages: domain.OriginalImages{
			A: req.ImageA,
			B: req.ImageB,
		},
	}
	r.FusionImage = PlaceholderURL(r.Name)
	return r
}

// Fallback returns the result used when nothing upstream was usable.
func Fallback(req domain.FusionRequest) domain.FusionResult {
	return Assemble(req, domain.Draft{})
}

func FallbackDescription(nameA, nameB string) string {
	return fmt.Sprintf("A legendary fusion that unites the power of %s and %s. "+
		"This new Digimon carries the unique abilities of both predecessors in a striking new design.",
		nameA, nameB)
}

func SyntheticPrompt(nameA, nameB string) string {
	return fmt.Sprintf("A fusion Digimon combining %s and %s, digital monster art style, "+
		"anime style, vibrant colors, fantasy creature, detailed design, professional artwork",
		nameA, nameB)
}

// PlaceholderURL is deterministic for a given name and never empty.
func PlaceholderURL(name string) string {
	return placeholderBase + encodeComponent(name)
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes s the way browsers encode a URI component.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func or(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
