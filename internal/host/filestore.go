package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var sensorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ErrBadSensorID rejects ids that cannot name a storage key.
var ErrBadSensorID = errors.New("invalid sensor id")

func checkSensorID(id string) error {
	if !sensorIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrBadSensorID, id)
	}
	return nil
}

// FileStore keeps each sensor's configuration and runtime state as files in
// one directory: <id>.cdata.json and <id>.cstate.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id, kind string) string {
	return filepath.Join(s.dir, id+"."+kind+".json")
}

// Persist writes atomically through a temp file in the same directory.
func (s *FileStore) Persist(ctx context.Context, sensorID string, data []byte) error {
	if err := checkSensorID(sensorID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, sensorID+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist %s: %w", sensorID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persist %s: %w", sensorID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist %s: %w", sensorID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(sensorID, "cdata")); err != nil {
		return fmt.Errorf("persist %s: %w", sensorID, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, sensorID string) ([]byte, error) {
	return s.read(ctx, sensorID, "cdata")
}

func (s *FileStore) LoadState(ctx context.Context, sensorID string) ([]byte, error) {
	return s.read(ctx, sensorID, "cstate")
}

// WriteState stores runtime state; the engine side of a file-backed host
// uses it, as do tests.
func (s *FileStore) WriteState(sensorID string, data []byte) error {
	if err := checkSensorID(sensorID); err != nil {
		return err
	}
	return os.WriteFile(s.path(sensorID, "cstate"), data, 0o644)
}

func (s *FileStore) read(ctx context.Context, id, kind string) ([]byte, error) {
	if err := checkSensorID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return data, nil
}
