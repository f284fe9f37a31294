// Package staging manages the on-disk scratch space used while an image is
// received, verified and re-encoded. Each fusion request gets its own arena
// under a shared root so concurrent requests never touch each other's files.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Root struct {
	dir string
}

func NewRoot(dir string) *Root {
	return &Root{dir: dir}
}

func (r *Root) Dir() string {
	return r.dir
}

// NewArena reserves a unique arena path. Nothing is created on disk until
// the first Write.
func (r *Root) NewArena() *Arena {
	return &Arena{dir: filepath.Join(r.dir, uuid.NewString())}
}

// Sweep removes arena directories whose modification time is older than
// maxAge and returns how many were removed. A missing root is not an error.
func (r *Root) Sweep(maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging root: %w", err)
	}

	removed := 0
	cutoff := now.Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := uuid.Validate(e.Name()); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove arena %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Arena is the scratch directory owned by a single fusion request.
type Arena struct {
	dir string
}

func (a *Arena) Dir() string {
	return a.dir
}

func (a *Arena) path(key, ext string) string {
	return filepath.Join(a.dir, key+"."+ext)
}

// Write stores data as <key>.<ext>, creating the arena directory if needed,
// and returns the file path.
func (a *Arena) Write(key, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o700); err != nil {
		return "", fmt.Errorf("create arena: %w", err)
	}
	p := a.path(key, ext)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return p, nil
}

func (a *Arena) Size(key, ext string) (int64, error) {
	info, err := os.Stat(a.path(key, ext))
	if err != nil {
		return 0, fmt.Errorf("stat staged file: %w", err)
	}
	return info.Size(), nil
}

func (a *Arena) Read(key, ext string) ([]byte, error) {
	data, err := os.ReadFile(a.path(key, ext))
	if err != nil {
		return nil, fmt.Errorf("read staged file: %w", err)
	}
	return data, nil
}

// Remove deletes the arena and everything in it. Removing an arena that was
// never created is a no-op.
func (a *Arena) Remove() error {
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("remove arena: %w", err)
	}
	return nil
}

// SanitizeKey replaces every character outside [A-Za-z0-9] with an underscore.
func SanitizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
