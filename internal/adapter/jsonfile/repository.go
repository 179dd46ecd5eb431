// Package jsonfile persists the zone collection as a single indented JSON
// array on local disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/flood-watch/internal/domain"
)

// Repository reads and writes zones to one file. Writes go to a temporary
// file in the same directory and are renamed over the target, so a reader
// never sees a half-written file.
type Repository struct {
	path string
}

// NewRepository creates a repository backed by path. The file does not need to exist.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the backing file path.
func (r *Repository) Path() string {
	return r.path
}

// Load returns the stored zones, or nil when the file does not exist yet.
func (r *Repository) Load(_ context.Context) ([]domain.Zone, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return Decode(data)
}

// Save replaces the file contents with zones.
func (r *Repository) Save(ctx context.Context, zones []domain.Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(zones)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}

// Encode renders zones the way they are stored on disk.
func Encode(zones []domain.Zone) ([]byte, error) {
	if zones == nil {
		zones = []domain.Zone{}
	}
	data, err := json.MarshalIndent(zones, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode zones: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored zone file.
func Decode(data []byte) ([]domain.Zone, error) {
	var zones []domain.Zone
	if err := json.Unmarshal(data, &zones); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	return zones, nil
}
