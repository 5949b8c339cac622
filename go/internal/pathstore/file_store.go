package pathstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	fileNamePrefix     = "path_"
	maxCollisionSuffix = 1000
)

// FileStore writes one JSON file per submission into a directory.
type FileStore struct {
	dir  string
	perm fs.FileMode
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create paths directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, perm: 0o644}, nil
}

// Dir returns the directory files are written to
func (s *FileStore) Dir() string {
	return s.dir
}

// FileName derives the file name for a receipt time. Attempt 0 is the plain
// name, later attempts add a counter suffix for same-millisecond submissions.
func FileName(receivedAt time.Time, attempt int) string {
	base := fmt.Sprintf("%s%d", fileNamePrefix, receivedAt.UnixMilli())
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, attempt)
}

// Save never overwrites an existing file.
func (s *FileStore) Save(ctx context.Context, sub Submission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := sub.Payload()
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt <= maxCollisionSuffix; attempt++ {
		name := FileName(sub.ReceivedAt, attempt)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.perm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", name, err)
		}

		_, writeErr := f.Write(data)
		closeErr := f.Close()
		if writeErr != nil {
			return name, fmt.Errorf("write %s: %w", name, writeErr)
		}
		if closeErr != nil {
			return name, fmt.Errorf("close %s: %w", name, closeErr)
		}
		return name, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNameExhausted, FileName(sub.ReceivedAt, 0))
}
