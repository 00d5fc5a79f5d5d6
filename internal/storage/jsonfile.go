package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleetsignal/idsclient/internal/model"
)

const stateDirName = "idsclient"
const stateFileName = "storage.json"

var noteLines = []string{
	"The IDs in this file are randomly generated UUIDs.",
	"This client uses these IDs to know how many installations use the",
	"embedding application, and to focus development on what's used.",
	"This file contains no personally identifiable information.",
	"You can delete this file at any time; fresh IDs will be generated.",
}

type wrappedStorage struct {
	Notes []string               `json:"notes"`
	Body  model.StoredProperties `json:"body"`
}

// JSONFile persists StoredProperties as a JSON document under a per-user
// state directory, writing atomically via a temp-file-then-rename.
type JSONFile struct {
	location  string
	directory string
}

// NewJSONFile targets an explicit file path.
func NewJSONFile(location string) (*JSONFile, error) {
	dir := filepath.Dir(location)
	if dir == "." || dir == "" {
		return nil, fmt.Errorf("storage: location %q has no parent directory", location)
	}
	return &JSONFile{location: location, directory: dir}, nil
}

// DefaultJSONFile targets the per-user state directory, creating it if
// necessary.
func DefaultJSONFile() (*JSONFile, error) {
	base, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("storage: no home directory available: %w", err)
	}
	dir := filepath.Join(base, ".local", "state", stateDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create state directory %q: %w", dir, err)
	}
	return &JSONFile{location: filepath.Join(dir, stateFileName), directory: dir}, nil
}

// Load implements Storage. An absent file is not an error: it reports a
// nil StoredProperties.
func (f *JSONFile) Load(context.Context) (*model.StoredProperties, error) {
	contents, err := os.ReadFile(f.location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: open %q: %w", f.location, err)
	}

	var wrapped wrappedStorage
	if err := json.Unmarshal(contents, &wrapped); err != nil {
		return nil, fmt.Errorf("storage: parse %q: %w", f.location, err)
	}
	return &wrapped.Body, nil
}

// Store implements Storage, writing to a temp file in the same directory
// and renaming into place so concurrent readers only ever see a complete
// file, old or new.
func (f *JSONFile) Store(_ context.Context, props model.StoredProperties) error {
	wrapped := wrappedStorage{Notes: noteLines, Body: props}
	data, err := json.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal properties: %w", err)
	}

	tmp, err := os.CreateTemp(f.directory, ".storage-*.json.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file in %q: %w", f.directory, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write temp file %q: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: fsync temp file %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp file %q: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.location); err != nil {
		return fmt.Errorf("storage: rename %q to %q: %w", tmpPath, f.location, err)
	}
	return nil
}
