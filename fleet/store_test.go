package fleet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSave(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.now = func() time.Time {
		return time.Date(2026, 8, 25, 13, 4, 5, 0, time.UTC)
	}

	dev := &Device{Name: "Line 3 Reader", IP: "10.1.2.3"}
	data := []byte("device configuration dump")

	path, err := s.Save(dev, data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Line_3_Reader_10.1.2.3_20260825_130405.cfg"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestStoreSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "backups")
	s := NewStore(dir)

	path, err := s.Save(&Device{Name: "reader", IP: "10.0.0.1"}, []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, dir, s.Dir())
}

func TestStoreSave_DirIsAFile(t *testing.T) {
	parent := t.TempDir()
	blocked := filepath.Join(parent, "backups")
	require.NoError(t, os.WriteFile(blocked, []byte("in the way"), 0o644))

	s := NewStore(blocked)

	_, err := s.Save(&Device{Name: "reader", IP: "10.0.0.1"}, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup dir")
}
