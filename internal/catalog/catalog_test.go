package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sampleCatalog = `[
	{"name":"Agumon","img":"https://digimon.shadowsmith.com/img/agumon.jpg","level":"Rookie"},
	{"name":"Gabumon","img":"https://digimon.shadowsmith.com/img/gabumon.jpg","level":"Rookie"},
	{"name":"Greymon","img":"https://digimon.shadowsmith.com/img/greymon.jpg","level":"Champion"}
]`

func newCatalogServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestList(t *testing.T) {
	srv, _ := newCatalogServer(t, http.StatusOK, sampleCatalog)
	c := New(srv.URL, time.Second)

	creatures, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(creatures) != 3 {
		t.Fatalf("expected 3 creatures, got %d", len(creatures))
	}
	if creatures[0].Name != "Agumon" || creatures[0].Level != "Rookie" {
		t.Errorf("unexpected first creature: %+v", creatures[0])
	}
	if creatures[1].Image != "https://digimon.shadowsmith.com/img/gabumon.jpg" {
		t.Errorf("unexpected image: %s", creatures[1].Image)
	}
}

func TestListNullBody(t *testing.T) {
	srv, _ := newCatalogServer(t, http.StatusOK, `null`)
	c := New(srv.URL, time.Second)

	creatures, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if creatures == nil || len(creatures) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", creatures)
	}
}

func TestListUpstreamFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"not found", http.StatusNotFound, ``},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newCatalogServer(t, tt.status, tt.body)
			c := New(srv.URL, time.Second)
			_, err := c.List(context.Background())
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestListConnectionRefused(t *testing.T) {
	srv, _ := newCatalogServer(t, http.StatusOK, sampleCatalog)
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).List(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestFindCaseInsensitive(t *testing.T) {
	srv, hits := newCatalogServer(t, http.StatusOK, sampleCatalog)
	c := New(srv.URL, time.Second)

	got, err := c.Find(context.Background(), "agumon")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Agumon" {
		t.Errorf("expected Agumon, got %s", got.Name)
	}

	if _, err := c.Find(context.Background(), "Agumon"); err != nil {
		t.Fatalf("second find: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected no caching (2 upstream hits), got %d", hits.Load())
	}

	_, err = c.Find(context.Background(), "Missingmon")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindPair(t *testing.T) {
	srv, hits := newCatalogServer(t, http.StatusOK, sampleCatalog)
	c := New(srv.URL, time.Second)

	a, b, err := c.FindPair(context.Background(), "AGUMON", "gabumon")
	if err != nil {
		t.Fatalf("find pair: %v", err)
	}
	if a.Name != "Agumon" || b.Name != "Gabumon" {
		t.Errorf("unexpected pair: %s, %s", a.Name, b.Name)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single upstream fetch, got %d", hits.Load())
	}

	_, _, err = c.FindPair(context.Background(), "Agumon", "Nobodymon")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
