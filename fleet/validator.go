package fleet

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-dmcc/digest"
	"github.com/arloliu/go-dmcc/dmcc"
	"github.com/arloliu/go-dmcc/logger"
)

// deviceConn is the subset of [dmcc.Connection] the validator drives.
type deviceConn interface {
	Backup(ctx context.Context) (*dmcc.BackupResult, error)
	PushConfig(ctx context.Context, payload []byte) error
	Close() error
}

// dialFunc opens a DMCC session with the device at ip. Swappable in tests.
type dialFunc func(ctx context.Context, ip string, opts ...dmcc.ConnOption) (deviceConn, error)

func defaultDial(ctx context.Context, ip string, opts ...dmcc.ConnOption) (deviceConn, error) {
	cfg, err := dmcc.NewConnectionConfig(ip, opts...)
	if err != nil {
		return nil, err
	}

	return dmcc.Dial(ctx, cfg)
}

// Validator runs the backup/compare/upload pass over a fleet of devices.
type Validator struct {
	cfg    *Config
	store  *Store
	logger logger.Logger
	dial   dialFunc
	now    func() time.Time

	// results retains the latest result per device name. Safe to read
	// while another pass runs in a background worker.
	results *xsync.MapOf[string, *Result]
}

// NewValidator creates a Validator for the given fleet configuration.
func NewValidator(cfg *Config, log logger.Logger) *Validator {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := cfg.BackupDir
	if dir == "" {
		dir = DefaultBackupDir
	}

	return &Validator{
		cfg:     cfg,
		store:   NewStore(dir),
		logger:  log,
		dial:    defaultDial,
		now:     time.Now,
		results: xsync.NewMapOf[string, *Result](),
	}
}

// Result returns the latest retained result for the named device.
func (v *Validator) Result(name string) (*Result, bool) {
	return v.results.Load(name)
}

// ValidateAll processes every configured device in order and returns one
// result per device. A failure in one device's pipeline never stops the
// pass; the fleet loop itself cannot fail once it has started.
func (v *Validator) ValidateAll(ctx context.Context) []*Result {
	devices := v.cfg.Devices
	v.logger.Info("fleet: starting validation pass",
		"devices", len(devices),
		"upload", v.cfg.Upload)

	results := make([]*Result, 0, len(devices))
	for i, dev := range devices {
		v.logger.Info("fleet: validating device",
			"device", dev.Name,
			"ip", dev.IP,
			"progress", fmt.Sprintf("%d/%d", i+1, len(devices)))

		res := v.ValidateDevice(ctx, dev)
		v.results.Store(dev.Name, res)
		results = append(results, res)
	}

	summary := Summarize(results)
	v.logger.Info("fleet: validation pass complete",
		"devices", summary.Total,
		"backups", summary.BackupsSucceeded,
		"matched", summary.Matched,
		"uploaded", summary.Uploaded,
		"errors", summary.Errors)

	return results
}

// ValidateDevice runs one device's pipeline: backup, local file check, diff,
// and conditional upload. Every failure mode, including a panic, is caught
// here and converted into the device's result.
func (v *Validator) ValidateDevice(ctx context.Context, dev *Device) (res *Result) {
	res = &Result{
		Device:    dev,
		Timestamp: v.now().Format(time.RFC3339),
	}

	defer func() {
		if r := recover(); r != nil {
			res.ErrorMessage = fmt.Sprintf("panic during validation: %v", r)
			v.logger.Error("fleet: device pipeline panicked",
				"device", dev.Name, "panic", r)
		}
	}()

	v.runPipeline(ctx, dev, res)

	return res
}

func (v *Validator) runPipeline(ctx context.Context, dev *Device, res *Result) {
	// Phase 1: retrieve and archive the live configuration.
	backup, err := v.backupDevice(ctx, dev)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("backup failed: %v", err)
		v.logger.Error("fleet: backup failed", "device", dev.Name, "error", err)

		return
	}

	if len(backup) == 0 {
		res.ErrorMessage = "no backup data received (device returned empty)"
		v.logger.Warn("fleet: empty backup", "device", dev.Name)

		return
	}

	res.BackupSuccessful = true
	res.BackupSize = len(backup)
	res.BackupHash = digest.Sum(backup)

	path, err := v.store.Save(dev, backup)
	if err != nil {
		res.ErrorMessage = err.Error()
		v.logger.Error("fleet: backup not archived", "device", dev.Name, "error", err)

		return
	}
	dev.BackupPath = path

	v.logger.Info("fleet: backup archived",
		"device", dev.Name,
		"path", path,
		"bytes", res.BackupSize,
		"hash", res.BackupHash)

	// Phase 2: the trusted local master must exist.
	if dev.ConfigFile == "" || !fileExists(dev.ConfigFile) {
		res.ErrorMessage = fmt.Sprintf("local config file not found: %s", dev.ConfigFile)
		v.logger.Warn("fleet: missing master config", "device", dev.Name, "path", dev.ConfigFile)

		return
	}
	res.LocalFileExists = true

	localHash, err := digest.SumFile(dev.ConfigFile)
	if err != nil {
		res.ErrorMessage = err.Error()

		return
	}
	res.LocalFileHash = localHash

	// Phase 3: compare content digests.
	if digest.Match(res.BackupHash, res.LocalFileHash) {
		res.FilesMatch = true
		v.logger.Info("fleet: configurations identical, no upload needed", "device", dev.Name)

		return
	}

	v.logger.Info("fleet: configurations differ",
		"device", dev.Name,
		"backupHash", res.BackupHash,
		"localHash", res.LocalFileHash)

	if !v.cfg.Upload {
		v.logger.Info("fleet: upload disabled, leaving device as-is", "device", dev.Name)

		return
	}

	// Phase 4: push the master configuration over a fresh connection.
	payload, err := os.ReadFile(dev.ConfigFile)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("read master config: %v", err)

		return
	}

	res.UploadAttempted = true
	if err := v.pushDevice(ctx, dev, payload); err != nil {
		res.ErrorMessage = fmt.Sprintf("upload failed: %v", err)
		v.logger.Error("fleet: upload failed", "device", dev.Name, "error", err)

		return
	}

	res.UploadSuccessful = true
	v.logger.Info("fleet: configuration uploaded", "device", dev.Name, "bytes", len(payload))
}

// backupDevice opens a session, retrieves the configuration dump, and closes
// the session before anything else happens with the device.
func (v *Validator) backupDevice(ctx context.Context, dev *Device) ([]byte, error) {
	conn, err := v.dial(ctx, dev.IP, v.cfg.Settings.ConnOptions()...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := conn.Backup(ctx)
	if err != nil {
		return nil, err
	}

	return result.Data, nil
}

// pushDevice opens a fresh session for the upload phase; the backup
// connection is never reused across phases.
func (v *Validator) pushDevice(ctx context.Context, dev *Device, payload []byte) error {
	conn, err := v.dial(ctx, dev.IP, v.cfg.Settings.ConnOptions()...)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.PushConfig(ctx, payload)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
