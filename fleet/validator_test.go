package fleet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dmcc/digest"
	"github.com/arloliu/go-dmcc/dmcc"
	"github.com/arloliu/go-dmcc/logger"
)

// stubConn is a canned deviceConn for pipeline tests.
type stubConn struct {
	backup    *dmcc.BackupResult
	backupErr error
	pushErr   error

	pushes [][]byte
	closed int
}

func (s *stubConn) Backup(ctx context.Context) (*dmcc.BackupResult, error) {
	if s.backupErr != nil {
		return nil, s.backupErr
	}

	return s.backup, nil
}

func (s *stubConn) PushConfig(ctx context.Context, payload []byte) error {
	s.pushes = append(s.pushes, append([]byte(nil), payload...))

	return s.pushErr
}

func (s *stubConn) Close() error {
	s.closed++

	return nil
}

// panicConn panics during backup, simulating a bug in the pipeline.
type panicConn struct{}

func (panicConn) Backup(ctx context.Context) (*dmcc.BackupResult, error) {
	panic("firmware sent garbage we did not expect")
}

func (panicConn) PushConfig(ctx context.Context, payload []byte) error { return nil }
func (panicConn) Close() error                                         { return nil }

// newTestValidator wires a Validator to canned connections, one per device IP.
func newTestValidator(t *testing.T, cfg *Config, conns map[string]deviceConn) *Validator {
	t.Helper()

	if cfg.BackupDir == "" {
		cfg.BackupDir = t.TempDir()
	}

	v := NewValidator(cfg, logger.GetLogger())
	v.now = func() time.Time { return time.Date(2026, 8, 25, 13, 4, 5, 0, time.UTC) }
	v.dial = func(ctx context.Context, ip string, opts ...dmcc.ConnOption) (deviceConn, error) {
		conn, ok := conns[ip]
		if !ok {
			return nil, errors.New("connect " + ip + ": connection refused")
		}

		return conn, nil
	}

	return v
}

// writeMaster writes a master config file and returns its path.
func writeMaster(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "master.cfg")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func backupOf(data []byte) *dmcc.BackupResult {
	return &dmcc.BackupResult{Data: data, Stop: dmcc.StopIdle}
}

func TestValidateDevice_Match(t *testing.T) {
	content := []byte("identical configuration")
	dev := &Device{Name: "Reader 1", IP: "10.0.0.1", ConfigFile: writeMaster(t, content)}
	conn := &stubConn{backup: backupOf(content)}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.1": conn})

	res := v.ValidateDevice(context.Background(), dev)

	assert.True(t, res.BackupSuccessful)
	assert.Equal(t, len(content), res.BackupSize)
	assert.Equal(t, digest.Sum(content), res.BackupHash)
	assert.True(t, res.LocalFileExists)
	assert.True(t, res.FilesMatch)
	assert.False(t, res.UploadAttempted)
	assert.False(t, res.UploadSuccessful)
	assert.Empty(t, res.ErrorMessage)
	assert.Empty(t, conn.pushes)

	// The backup was archived even though nothing needed changing.
	assert.FileExists(t, dev.BackupPath)
	assert.Equal(t, 1, conn.closed)
}

func TestValidateDevice_DifferUploads(t *testing.T) {
	master := []byte("the trusted master config")
	dev := &Device{Name: "Reader 2", IP: "10.0.0.2", ConfigFile: writeMaster(t, master)}
	conn := &stubConn{backup: backupOf([]byte("stale device config"))}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.2": conn})

	res := v.ValidateDevice(context.Background(), dev)

	assert.True(t, res.BackupSuccessful)
	assert.False(t, res.FilesMatch)
	assert.True(t, res.UploadAttempted)
	assert.True(t, res.UploadSuccessful)
	assert.Empty(t, res.ErrorMessage)

	// The pushed payload is the master file, byte for byte.
	require.Len(t, conn.pushes, 1)
	assert.Equal(t, master, conn.pushes[0])

	// One connection per phase: backup, then a fresh one for upload.
	assert.Equal(t, 2, conn.closed)
}

func TestValidateDevice_EmptyBackup(t *testing.T) {
	dev := &Device{Name: "Reader 3", IP: "10.0.0.3", ConfigFile: writeMaster(t, []byte("master"))}
	conn := &stubConn{backup: backupOf(nil)}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.3": conn})

	res := v.ValidateDevice(context.Background(), dev)

	assert.False(t, res.BackupSuccessful)
	assert.Contains(t, res.ErrorMessage, "empty")
	// Local file check and upload are both skipped.
	assert.False(t, res.LocalFileExists)
	assert.False(t, res.UploadAttempted)
	assert.Empty(t, conn.pushes)
}

func TestValidateDevice_BackupTransportError(t *testing.T) {
	dev := &Device{Name: "Reader 4", IP: "10.0.0.4", ConfigFile: writeMaster(t, []byte("master"))}
	conn := &stubConn{backupErr: errors.New("read backup: connection reset by peer")}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.4": conn})

	res := v.ValidateDevice(context.Background(), dev)

	assert.False(t, res.BackupSuccessful)
	assert.Contains(t, res.ErrorMessage, "backup failed")
	assert.False(t, res.UploadAttempted)
}

func TestValidateDevice_MissingLocalFile(t *testing.T) {
	dev := &Device{
		Name:       "Reader 5",
		IP:         "10.0.0.5",
		ConfigFile: filepath.Join(t.TempDir(), "absent.cfg"),
	}
	conn := &stubConn{backup: backupOf([]byte("live config"))}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.5": conn})

	res := v.ValidateDevice(context.Background(), dev)

	// The backup outcome is still recorded.
	assert.True(t, res.BackupSuccessful)
	assert.NotEmpty(t, res.BackupHash)

	assert.False(t, res.LocalFileExists)
	assert.Contains(t, res.ErrorMessage, "not found")
	assert.False(t, res.UploadAttempted)
	assert.Empty(t, conn.pushes)
}

func TestValidateDevice_UploadStepFailure(t *testing.T) {
	master := []byte("master config")
	dev := &Device{Name: "Reader 6", IP: "10.0.0.6", ConfigFile: writeMaster(t, master)}
	conn := &stubConn{
		backup:  backupOf([]byte("different config")),
		pushErr: &dmcc.StepError{Step: dmcc.StepSave, Err: errors.New("broken pipe")},
	}

	cfg := &Config{Upload: true, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.6": conn})

	res := v.ValidateDevice(context.Background(), dev)

	// Backup and diff fields are unaffected by the upload failure.
	assert.True(t, res.BackupSuccessful)
	assert.True(t, res.LocalFileExists)
	assert.False(t, res.FilesMatch)

	assert.True(t, res.UploadAttempted)
	assert.False(t, res.UploadSuccessful)
	assert.Contains(t, res.ErrorMessage, "CONFIG.SAVE")
}

func TestValidateDevice_UploadDisabled(t *testing.T) {
	dev := &Device{Name: "Reader 7", IP: "10.0.0.7", ConfigFile: writeMaster(t, []byte("master"))}
	conn := &stubConn{backup: backupOf([]byte("different"))}

	cfg := &Config{Upload: false, Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, map[string]deviceConn{"10.0.0.7": conn})

	res := v.ValidateDevice(context.Background(), dev)

	assert.False(t, res.FilesMatch)
	assert.False(t, res.UploadAttempted)
	assert.Empty(t, res.ErrorMessage)
	assert.Empty(t, conn.pushes)
}

func TestValidateAll_OneDevicePanicking(t *testing.T) {
	content := []byte("shared master")
	master := writeMaster(t, content)

	devices := []*Device{
		{Name: "Reader A", IP: "10.0.1.1", ConfigFile: master},
		{Name: "Reader B", IP: "10.0.1.2", ConfigFile: master},
		{Name: "Reader C", IP: "10.0.1.3", ConfigFile: master},
	}

	conns := map[string]deviceConn{
		"10.0.1.1": &stubConn{backup: backupOf(content)},
		"10.0.1.2": panicConn{},
		"10.0.1.3": &stubConn{backup: backupOf(content)},
	}

	cfg := &Config{Upload: true, Devices: devices}
	v := newTestValidator(t, cfg, conns)

	results := v.ValidateAll(context.Background())
	require.Len(t, results, 3)

	// Devices 1 and 3 produce complete, independent results.
	assert.True(t, results[0].FilesMatch)
	assert.Empty(t, results[0].ErrorMessage)
	assert.True(t, results[2].FilesMatch)
	assert.Empty(t, results[2].ErrorMessage)

	// Device 2's panic is recorded in its own result only.
	assert.False(t, results[1].BackupSuccessful)
	assert.Contains(t, results[1].ErrorMessage, "panic")

	// Results are retained per device name.
	retained, ok := v.Result("Reader B")
	require.True(t, ok)
	assert.Same(t, results[1], retained)
}

func TestValidateAll_DialFailureIsPerDevice(t *testing.T) {
	master := writeMaster(t, []byte("master"))
	devices := []*Device{
		{Name: "Reachable", IP: "10.0.2.1", ConfigFile: master},
		{Name: "Unreachable", IP: "10.0.2.2", ConfigFile: master},
	}

	conns := map[string]deviceConn{
		"10.0.2.1": &stubConn{backup: backupOf([]byte("master"))},
		// 10.0.2.2 intentionally absent: dial refuses.
	}

	cfg := &Config{Upload: true, Devices: devices}
	v := newTestValidator(t, cfg, conns)

	results := v.ValidateAll(context.Background())
	require.Len(t, results, 2)

	assert.Empty(t, results[0].ErrorMessage)
	assert.Contains(t, results[1].ErrorMessage, "connection refused")
	assert.False(t, results[1].BackupSuccessful)
}

func TestValidateDevice_TimestampFormat(t *testing.T) {
	dev := &Device{Name: "Reader 8", IP: "10.0.0.8"}

	cfg := &Config{Devices: []*Device{dev}}
	v := newTestValidator(t, cfg, nil)

	res := v.ValidateDevice(context.Background(), dev)

	ts, err := time.Parse(time.RFC3339, res.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())
}
