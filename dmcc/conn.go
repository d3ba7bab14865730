package dmcc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-dmcc/internal/pool"
	"github.com/arloliu/go-dmcc/logger"
)

// Sentinel errors for the DMCC transport.
var (
	ErrConnClosed   = errors.New("dmcc: connection closed")
	ErrEmptyPayload = errors.New("dmcc: empty config payload")
)

// drainBufferSize is the read buffer for the connect-time negotiation burst.
const drainBufferSize = 4096

// Connection is a single DMCC session with one device.
//
// A Connection owns exactly one TCP socket. It is NOT goroutine-safe: the
// protocol is strictly request-then-accumulate, so callers must issue one
// operation at a time. Use a fresh Connection per phase (backup, upload);
// the device drops half-open sessions across reboots anyway.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger
	conn   net.Conn
	filter TelnetFilter

	metrics ConnectionMetrics
}

// Dial connects to the device described by cfg and drains the Telnet
// negotiation burst the device issues on connect.
//
// The drain is best-effort: a deadline expiry is not an error, since some
// firmware revisions stay silent until the first command.
func Dial(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, errors.New("dmcc: connection config is nil")
	}

	dialer := net.Dialer{Timeout: cfg.connectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("dmcc: connect %s: %w", cfg.Addr(), err)
	}

	c := &Connection{
		cfg:    cfg,
		logger: cfg.logger,
		conn:   conn,
	}
	c.filter.OnNegotiation = func(cmd, opt byte) {
		c.metrics.incNegotiationCount()
	}

	c.drainNegotiation()

	return c, nil
}

// drainNegotiation performs one read to consume whatever the device sends
// immediately after accepting the connection, answering any option
// negotiations found in it. Payload bytes arriving this early belong to no
// command and are discarded.
func (c *Connection) drainNegotiation() {
	buf := make([]byte, drainBufferSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.socketTimeout)); err != nil {
		c.logger.Debug("dmcc: set drain deadline failed", "error", err)
		return
	}

	n, err := c.conn.Read(buf)
	if n > 0 {
		c.metrics.addBytesReceived(n)

		if _, ferr := c.filter.Filter(negotiationWriter{c}, buf[:n]); ferr != nil {
			c.logger.Debug("dmcc: negotiation drain reply failed", "error", ferr)
		}
	}

	if err != nil && !isTimeoutError(err) {
		c.logger.Debug("dmcc: negotiation drain read ended", "error", err)
	}
}

// SendLine sends one DMCC command line terminated with CRLF as a single write.
func (c *Connection) SendLine(line string) error {
	return c.write(append([]byte(line), '\r', '\n'))
}

// write writes all of data to the socket under the configured write deadline.
func (c *Connection) write(data []byte) error {
	if c.conn == nil {
		return ErrConnClosed
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.socketTimeout)); err != nil {
		return fmt.Errorf("dmcc: set write deadline: %w", err)
	}

	for written := 0; written < len(data); {
		n, err := c.conn.Write(data[written:])
		written += n

		if err != nil {
			c.metrics.incSendErrCount()
			return fmt.Errorf("dmcc: write: %w", err)
		}
	}

	return nil
}

// negotiationWriter routes Telnet refusal replies through the connection's
// deadline-guarded write path, so a stalled peer cannot hang the filter.
type negotiationWriter struct {
	c *Connection
}

func (w negotiationWriter) Write(p []byte) (int, error) {
	if err := w.c.write(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// settle pauses for d between device commands, honoring ctx cancellation.
func (c *Connection) settle(ctx context.Context, d time.Duration) error {
	timer := pool.GetTimer(d)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases the socket. It is safe to call multiple times and on every
// exit path, including after a transport error.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("dmcc: close: %w", err)
	}

	return nil
}

// RemoteAddr returns the device address of the underlying socket, or "" if
// the connection is closed.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}

	return c.conn.RemoteAddr().String()
}

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// isTimeoutError reports whether err is a deadline expiry rather than a
// genuine transport failure.
func isTimeoutError(err error) bool {
	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}
