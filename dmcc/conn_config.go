package dmcc

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/arloliu/go-dmcc/logger"
)

// Default configuration values for a DMCC connection.
const (
	DefaultPort = 23 // Telnet port used by the sensor firmware

	DefaultConnectTimeout = 5 * time.Second
	DefaultSocketTimeout  = 3 * time.Second // per-write deadline and connect-time drain read

	DefaultIdleTimeout  = 1 * time.Second  // silence that ends a backup read
	DefaultOverallLimit = 20 * time.Second // hard wall-clock cap on a backup read

	DefaultMaxBackupBytes = 50 << 20 // safety cap against runaway streams

	DefaultSettleDelay = 200 * time.Millisecond
	DefaultRebootDelay = 500 * time.Millisecond // REBOOT needs longer; the device starts restarting
)

// Configuration range limits.
const (
	MinIdleTimeout = 100 * time.Millisecond
	MaxIdleTimeout = 30 * time.Second

	MinOverallLimit = 1 * time.Second
	MaxOverallLimit = 10 * time.Minute

	MinSettleDelay = 10 * time.Millisecond
	MaxSettleDelay = 5 * time.Second

	MaxMaxBackupBytes = 1 << 30
)

// ConnectionConfig holds all configuration for a DMCC device connection.
type ConnectionConfig struct {
	host string
	port int

	// TCP-level timeouts.
	connectTimeout time.Duration
	socketTimeout  time.Duration

	// Backup read loop bounds.
	idleTimeout    time.Duration
	overallLimit   time.Duration
	maxBackupBytes int

	// Inter-command settle delays.
	settleDelay time.Duration
	rebootDelay time.Duration

	logger logger.Logger
}

// NewConnectionConfig creates a new DMCC connection configuration.
//
// host is the device address. opts are functional options applied in order;
// see With* functions. The port defaults to [DefaultPort].
func NewConnectionConfig(host string, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		port:           DefaultPort,
		connectTimeout: DefaultConnectTimeout,
		socketTimeout:  DefaultSocketTimeout,
		idleTimeout:    DefaultIdleTimeout,
		overallLimit:   DefaultOverallLimit,
		maxBackupBytes: DefaultMaxBackupBytes,
		settleDelay:    DefaultSettleDelay,
		rebootDelay:    DefaultRebootDelay,
		logger:         logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if host != "" && !strings.ContainsAny(host, " \t") {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("dmcc: invalid host %q", host)
}

// --- Getters ---

// Host returns the configured device address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// SocketTimeout returns the per-write deadline, also used for the
// connect-time negotiation drain read.
func (cfg *ConnectionConfig) SocketTimeout() time.Duration { return cfg.socketTimeout }

// IdleTimeout returns the maximum silence duration before a backup read
// concludes the transmission has ended.
func (cfg *ConnectionConfig) IdleTimeout() time.Duration { return cfg.idleTimeout }

// OverallLimit returns the hard wall-clock cap on a backup read.
func (cfg *ConnectionConfig) OverallLimit() time.Duration { return cfg.overallLimit }

// MaxBackupBytes returns the maximum number of filtered payload bytes a
// backup read will accumulate.
func (cfg *ConnectionConfig) MaxBackupBytes() int { return cfg.maxBackupBytes }

// SettleDelay returns the pause inserted between successive device commands.
func (cfg *ConnectionConfig) SettleDelay() time.Duration { return cfg.settleDelay }

// RebootDelay returns the pause inserted after the REBOOT command.
func (cfg *ConnectionConfig) RebootDelay() time.Duration { return cfg.rebootDelay }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithPort sets the TCP port. Must be in [1, 65535].
func WithPort(port int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("dmcc: port %d out of range [1, 65535]", port)
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("dmcc: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithSocketTimeout sets the per-write deadline, also used for the
// connect-time negotiation drain read.
func WithSocketTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("dmcc: socket timeout must be positive")
		}
		cfg.socketTimeout = d

		return nil
	})
}

// WithIdleTimeout sets the silence duration that ends a backup read.
func WithIdleTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinIdleTimeout || d > MaxIdleTimeout {
			return fmt.Errorf("dmcc: idle timeout %v out of range [%v, %v]", d, MinIdleTimeout, MaxIdleTimeout)
		}
		cfg.idleTimeout = d

		return nil
	})
}

// WithOverallLimit sets the hard wall-clock cap on a backup read.
func WithOverallLimit(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinOverallLimit || d > MaxOverallLimit {
			return fmt.Errorf("dmcc: overall limit %v out of range [%v, %v]", d, MinOverallLimit, MaxOverallLimit)
		}
		cfg.overallLimit = d

		return nil
	})
}

// WithMaxBackupBytes sets the maximum number of filtered payload bytes a
// backup read will accumulate.
func WithMaxBackupBytes(n int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if n < 1 || n > MaxMaxBackupBytes {
			return fmt.Errorf("dmcc: max backup bytes %d out of range [1, %d]", n, MaxMaxBackupBytes)
		}
		cfg.maxBackupBytes = n

		return nil
	})
}

// WithSettleDelay sets the pause inserted between successive device commands.
func WithSettleDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinSettleDelay || d > MaxSettleDelay {
			return fmt.Errorf("dmcc: settle delay %v out of range [%v, %v]", d, MinSettleDelay, MaxSettleDelay)
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithRebootDelay sets the pause inserted after the REBOOT command.
func WithRebootDelay(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinSettleDelay || d > MaxSettleDelay {
			return fmt.Errorf("dmcc: reboot delay %v out of range [%v, %v]", d, MinSettleDelay, MaxSettleDelay)
		}
		cfg.rebootDelay = d

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("dmcc: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
