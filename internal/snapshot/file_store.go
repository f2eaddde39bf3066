package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/phrazzld/analysis-api/internal/platform/logger"
)

// validID matches every id the task registry can hand out. Anything else is
// treated as unknown so ids can never escape the store directory.
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileStore keeps one JSON document per task in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Write replaces the snapshot for s.RequestID. The document is written to a
// temporary file, synced and renamed over the previous version, so a reader
// sees either the old or the new snapshot in full.
func (s *FileStore) Write(ctx context.Context, snap Snapshot) error {
	if !validID.MatchString(snap.RequestID) {
		return fmt.Errorf("invalid snapshot id %q", snap.RequestID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.RequestID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path(snap.RequestID)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	logger.FromContextOrDefault(ctx, nil).Debug("snapshot written",
		"task_id", snap.RequestID,
		"status", snap.Status,
		"results", len(snap.Results))
	return nil
}

// Read loads the snapshot for id. Unknown or malformed ids yield ErrNotFound.
func (s *FileStore) Read(ctx context.Context, id string) (Snapshot, error) {
	if !validID.MatchString(id) {
		return Snapshot{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return snap, nil
}
