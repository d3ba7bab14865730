package fleet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// backupTimeFormat is the timestamp embedded in backup file names.
const backupTimeFormat = "20060102_150405"

// Store persists retrieved configuration blobs under a single directory
// using timestamped file names, for audit and later restore.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{
		dir: dir,
		now: time.Now,
	}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data to "{device-name}_{ip}_{timestamp}.cfg" under the store
// directory and returns the written path. Spaces in the device name are
// replaced so the file name never contains them.
func (s *Store) Save(dev *Device, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("fleet: create backup dir %s: %w", s.dir, err)
	}

	safeName := strings.ReplaceAll(dev.Name, " ", "_")
	ts := s.now().Format(backupTimeFormat)
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.cfg", safeName, dev.IP, ts))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("fleet: write backup %s: %w", path, err)
	}

	return path, nil
}
