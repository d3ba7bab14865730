package fleet

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-dmcc/dmcc"
)

// DefaultBackupDir is where backups land when the fleet file does not
// override it.
const DefaultBackupDir = "backups"

// Duration wraps time.Duration with YAML support for strings like "5s" and
// bare numbers interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("fleet: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)

		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("fleet: invalid duration: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings carries the protocol timing configuration shared by every device
// in the fleet. Zero values fall back to the dmcc package defaults.
type Settings struct {
	Port           int      `yaml:"port"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	SocketTimeout  Duration `yaml:"socket_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	OverallLimit   Duration `yaml:"overall_limit"`
	MaxBackupBytes int      `yaml:"max_backup_bytes"`
	SettleDelay    Duration `yaml:"settle_delay"`
	RebootDelay    Duration `yaml:"reboot_delay"`
}

// ConnOptions maps the non-zero settings to dmcc connection options.
func (s *Settings) ConnOptions() []dmcc.ConnOption {
	var opts []dmcc.ConnOption

	if s.Port != 0 {
		opts = append(opts, dmcc.WithPort(s.Port))
	}
	if s.ConnectTimeout != 0 {
		opts = append(opts, dmcc.WithConnectTimeout(s.ConnectTimeout.Std()))
	}
	if s.SocketTimeout != 0 {
		opts = append(opts, dmcc.WithSocketTimeout(s.SocketTimeout.Std()))
	}
	if s.IdleTimeout != 0 {
		opts = append(opts, dmcc.WithIdleTimeout(s.IdleTimeout.Std()))
	}
	if s.OverallLimit != 0 {
		opts = append(opts, dmcc.WithOverallLimit(s.OverallLimit.Std()))
	}
	if s.MaxBackupBytes != 0 {
		opts = append(opts, dmcc.WithMaxBackupBytes(s.MaxBackupBytes))
	}
	if s.SettleDelay != 0 {
		opts = append(opts, dmcc.WithSettleDelay(s.SettleDelay.Std()))
	}
	if s.RebootDelay != 0 {
		opts = append(opts, dmcc.WithRebootDelay(s.RebootDelay.Std()))
	}

	return opts
}

// Config is the fleet configuration file: the device inventory plus the
// shared protocol settings.
type Config struct {
	// BackupDir is where retrieved configurations are archived.
	BackupDir string `yaml:"backup_dir"`

	// Upload enables pushing the master configuration when digests differ.
	Upload bool `yaml:"upload"`

	Settings Settings  `yaml:"settings"`
	Devices  []*Device `yaml:"devices"`
}

// LoadConfig reads and validates a fleet configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fleet: read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("fleet: parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.BackupDir == "" {
		cfg.BackupDir = DefaultBackupDir
	}

	return &cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.Devices) == 0 {
		return errors.New("fleet: config lists no devices")
	}

	seen := make(map[string]struct{}, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if dev.Name == "" {
			return fmt.Errorf("fleet: device #%d has no name", i+1)
		}
		if dev.IP == "" {
			return fmt.Errorf("fleet: device %q has no IP", dev.Name)
		}
		if _, dup := seen[dev.Name]; dup {
			return fmt.Errorf("fleet: duplicate device name %q", dev.Name)
		}
		seen[dev.Name] = struct{}{}
	}

	return nil
}
