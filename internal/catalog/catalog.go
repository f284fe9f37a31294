package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/domain"
)

var (
	ErrUnavailable = errors.New("catalog unavailable")
	ErrNotFound    = errors.New("creature not found")
)

// Client reads creature records from the public catalog API. Results are
// never cached; each call goes to the upstream.
type Client struct {
	url  string
	http *http.Client
}

func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) List(ctx context.Context) ([]domain.Creature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var creatures []domain.Creature
	if err := json.NewDecoder(resp.Body).Decode(&creatures); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if creatures == nil {
		creatures = []domain.Creature{}
	}
	return creatures, nil
}

// Find looks a creature up by name, ignoring case.
func (c *Client) Find(ctx context.Context, name string) (*domain.Creature, error) {
	creatures, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	if found := lookup(creatures, name); found != nil {
		return found, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// FindPair resolves two names against a single catalog fetch.
func (c *Client) FindPair(ctx context.Context, a, b string) (*domain.Creature, *domain.Creature, error) {
	creatures, err := c.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	ca, cb := lookup(creatures, a), lookup(creatures, b)
	if ca == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, a)
	}
	if cb == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, b)
	}
	return ca, cb, nil
}

func lookup(creatures []domain.Creature, name string) *domain.Creature {
	for i := range creatures {
		if strings.EqualFold(creatures[i].Name, name) {
			c := creatures[i]
			return &c
		}
	}
	return nil
}
