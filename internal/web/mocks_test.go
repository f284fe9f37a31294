package web

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mtzanidakis/digifuse/internal/auth"
	"github.com/mtzanidakis/digifuse/internal/catalog"
	"github.com/mtzanidakis/digifuse/internal/domain"
)

type fakeCatalog struct {
	creatures []domain.Creature
	err       error
}

func (c *fakeCatalog) List(context.Context) ([]domain.Creature, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.creatures, nil
}

func (c *fakeCatalog) Find(ctx context.Context, name string) (*domain.Creature, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, name) {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrNotFound, name)
}

func (c *fakeCatalog) FindPair(ctx context.Context, a, b string) (*domain.Creature, *domain.Creature, error) {
	ca, err := c.Find(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	cb, err := c.Find(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return ca, cb, nil
}

type fakeFuser struct {
	mu       sync.Mutex
	calls    []domain.FusionRequest
	panicMsg string
}

func (f *fakeFuser) Create(_ context.Context, req domain.FusionRequest) domain.FusionResult {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return domain.FusionResult{
		Name:           req.NameA + req.NameB,
		Description:    "fused",
		Level:          "Champion",
		Type:           "Data",
		ImagePrompt:    "prompt",
		FusionImage:    "https://via.placeholder.com/512x512/FF6B35/FFFFFF?text=" + req.NameA + req.NameB,
		OriginalImages: domain.OriginalImages{A: req.ImageA, B: req.ImageB},
	}
}

func (f *fakeFuser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGoogle struct {
	identities map[string]*auth.GoogleIdentity
	err        error
}

func (g *fakeGoogle) Verify(_ context.Context, token string) (*auth.GoogleIdentity, error) {
	if g.err != nil {
		return nil, g.err
	}
	id, ok := g.identities[token]
	if !ok {
		return nil, fmt.Errorf("validate google token: unknown token %q", token)
	}
	return id, nil
}

var testCreatures = []domain.Creature{
	{Name: "Agumon", Image: "https://img/agumon.jpg", Level: "Rookie"},
	{Name: "Gabumon", Image: "https://img/gabumon.jpg", Level: "Rookie"},
	{Name: "Patamon", Image: "https://img/patamon.jpg", Level: "Rookie"},
}
