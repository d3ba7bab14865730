package fleet

// Device describes one vision sensor in the fleet.
//
// Devices come from the static fleet configuration and are reused across
// validation passes; only BackupPath is mutated, once per pass.
type Device struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`
	IP    string `json:"ip" yaml:"ip"`

	// ConfigFile is the path to the trusted local master configuration.
	ConfigFile string `json:"cfg_file" yaml:"cfg_file"`

	// BackupPath records where the most recent retrieved backup was stored.
	BackupPath string `json:"backup_path" yaml:"-"`
}

// Result is the outcome of one device's validation pass. It is finalized
// when the device's pipeline exits and never mutated afterward.
//
// Field invariants: UploadAttempted implies BackupSuccessful,
// LocalFileExists, and !FilesMatch; FilesMatch implies !UploadAttempted.
type Result struct {
	Device *Device `json:"device"`

	BackupSuccessful bool   `json:"backup_successful"`
	BackupSize       int    `json:"backup_size"`
	BackupHash       string `json:"backup_hash"`

	LocalFileExists bool   `json:"local_file_exists"`
	LocalFileHash   string `json:"local_file_hash"`

	FilesMatch bool `json:"files_match"`

	UploadAttempted  bool `json:"upload_attempted"`
	UploadSuccessful bool `json:"upload_successful"`

	ErrorMessage string `json:"error_message,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// OK reports whether the device completed the pass without an error message.
func (r *Result) OK() bool {
	return r.ErrorMessage == ""
}
