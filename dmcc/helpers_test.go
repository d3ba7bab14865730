package dmcc

import (
	"io"
	"net"
	"testing"
	"time"
)

// newTestConfig creates a ConnectionConfig with short timeouts suitable for tests.
func newTestConfig(t *testing.T, opts ...ConnOption) *ConnectionConfig {
	t.Helper()

	defaults := []ConnOption{
		WithIdleTimeout(MinIdleTimeout),   // 100ms
		WithOverallLimit(MinOverallLimit), // 1s
		WithSettleDelay(MinSettleDelay),   // 10ms
		WithRebootDelay(MinSettleDelay),
		WithSocketTimeout(250 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig("127.0.0.1", append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestConn creates a Connection backed by the local end of net.Pipe(),
// bypassing Dial and its connect-time negotiation drain.
// Returns the connection and the remote end for test simulation.
func newTestConn(t *testing.T, cfg *ConnectionConfig) (*Connection, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	c := &Connection{
		cfg:    cfg,
		logger: cfg.logger,
		conn:   local,
	}
	c.filter.OnNegotiation = func(cmd, opt byte) {
		c.metrics.incNegotiationCount()
	}

	return c, remote
}

// mustWrite writes data to w, failing the test on error.
func mustWrite(t *testing.T, w io.Writer, data []byte) {
	t.Helper()

	if _, err := w.Write(data); err != nil {
		t.Errorf("mustWrite: %v", err)
	}
}

// readExactly reads exactly n bytes from r, failing the test on error.
func readExactly(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Errorf("readExactly: %v", err)
	}

	return buf
}

// crlf appends the DMCC line terminator to a command.
func crlf(line string) []byte {
	return []byte(line + "\r\n")
}
