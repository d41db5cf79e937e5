// Package persist writes and reads run output files. Every write goes to a
// temporary file in the target directory and is renamed into place, so a
// reader never observes a half-written file.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/topic-digest/internal/dataset"
	"github.com/jonathan/topic-digest/internal/schemas"
)

// WriteError reports a failed write of an output file.
type WriteError struct {
	Path    string
	Message string
	Cause   error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("write error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("write error: %s: %s", e.Path, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// LoadError reports an unreadable or invalid dataset file.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load error: %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// EncodeDataset renders d as indented JSON with a trailing newline. The
// output is byte-stable for equal datasets.
func EncodeDataset(d *dataset.Dataset) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset to JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveDataset recomputes d's counters, validates the encoded form and writes
// it atomically to path.
func SaveDataset(d *dataset.Dataset, path string) error {
	d.UpdateCounts()

	data, err := EncodeDataset(d)
	if err != nil {
		return &WriteError{Path: path, Message: "encode failed", Cause: err}
	}
	if err := schemas.ValidateDataset(data); err != nil {
		return &WriteError{Path: path, Message: "dataset does not match schema", Cause: err}
	}
	return WriteFileAtomic(path, data, 0644)
}

// LoadDataset reads a dataset written by SaveDataset.
func LoadDataset(path string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "read failed", Cause: err}
	}
	if err := schemas.ValidateDataset(data); err != nil {
		return nil, &LoadError{Path: path, Message: "dataset does not match schema", Cause: err}
	}

	var d dataset.Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &LoadError{Path: path, Message: "decode failed", Cause: err}
	}
	return &d, nil
}

// WriteFileAtomic writes data to a temporary sibling of path, syncs it and
// renames it over path. Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Path: path, Message: "failed to create directory", Cause: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Message: "failed to create temp file", Cause: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &WriteError{Path: path, Message: "failed to write temp file", Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &WriteError{Path: path, Message: "failed to sync temp file", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Message: "failed to close temp file", Cause: err}
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return &WriteError{Path: path, Message: "failed to set permissions", Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &WriteError{Path: path, Message: "failed to rename temp file", Cause: err}
	}
	committed = true
	return nil
}
