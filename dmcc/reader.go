package dmcc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const backupCommand = "||>DEVICE.BACKUP"

// readChunkSize is the per-read buffer for the backup accumulation loop.
const readChunkSize = 8192

// StopReason identifies why a backup read loop concluded.
type StopReason int

const (
	// StopIdle: no data arrived within the idle timeout — the device has
	// finished transmitting.
	StopIdle StopReason = iota
	// StopOverall: the hard wall-clock cap elapsed regardless of activity.
	StopOverall
	// StopMaxBytes: the accumulated filtered payload reached the size cap.
	StopMaxBytes
	// StopEOF: the device closed the connection.
	StopEOF
)

func (r StopReason) String() string {
	switch r {
	case StopIdle:
		return "idle"
	case StopOverall:
		return "overall-limit"
	case StopMaxBytes:
		return "max-bytes"
	case StopEOF:
		return "eof"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// BackupResult carries the configuration bytes returned by DEVICE.BACKUP
// together with the reason the read loop concluded.
//
// Empty Data with a nil error is a valid outcome — some devices answer an
// empty but well-formed response. The caller decides how to treat it.
type BackupResult struct {
	Data []byte
	Stop StopReason
}

// Backup requests a full configuration dump from the device and accumulates
// the response.
//
// It sends DEVICE.BACKUP, waits one settle delay, then reads until the line
// goes idle, the overall limit elapses, or the size cap is reached. Every
// received chunk passes through the Telnet filter before it is accumulated;
// only filtered bytes count toward the cap.
func (c *Connection) Backup(ctx context.Context) (*BackupResult, error) {
	if c.conn == nil {
		return nil, ErrConnClosed
	}

	if err := c.SendLine(backupCommand); err != nil {
		return nil, err
	}
	c.metrics.incCommandCount()

	if err := c.settle(ctx, c.cfg.settleDelay); err != nil {
		return nil, err
	}

	result, err := c.readUntilIdle(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("dmcc: backup read concluded",
		"addr", c.cfg.Addr(),
		"bytes", len(result.Data),
		"stop", result.Stop.String())

	return result, nil
}

// readUntilIdle runs the dual-timeout accumulation loop.
//
// Each iteration arms the read deadline with the nearer of the idle and
// overall deadlines (capped by the ctx deadline, if any), so a deadline
// expiry is itself the loop's termination signal rather than something
// re-derived from wall-clock sampling between short polls.
func (c *Connection) readUntilIdle(ctx context.Context) (*BackupResult, error) {
	var acc []byte

	buf := make([]byte, readChunkSize)
	start := time.Now()
	lastData := start

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := time.Now()
		overallDeadline := start.Add(c.cfg.overallLimit)
		if !now.Before(overallDeadline) {
			return &BackupResult{Data: acc, Stop: StopOverall}, nil
		}

		idleDeadline := lastData.Add(c.cfg.idleTimeout)
		if !now.Before(idleDeadline) {
			return &BackupResult{Data: acc, Stop: StopIdle}, nil
		}

		deadline := idleDeadline
		if overallDeadline.Before(deadline) {
			deadline = overallDeadline
		}
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}

		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("dmcc: set read deadline: %w", err)
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			lastData = time.Now()
			c.metrics.addBytesReceived(n)

			filtered, ferr := c.filter.Filter(negotiationWriter{c}, buf[:n])
			if ferr != nil {
				return nil, ferr
			}

			acc = append(acc, filtered...)
			if len(acc) >= c.cfg.maxBackupBytes {
				return &BackupResult{Data: acc[:c.cfg.maxBackupBytes], Stop: StopMaxBytes}, nil
			}
		}

		if err != nil {
			switch {
			case isTimeoutError(err):
				// The armed deadline expired; the loop head decides
				// whether that was idle, overall, or ctx.
				continue
			case errors.Is(err, io.EOF):
				return &BackupResult{Data: acc, Stop: StopEOF}, nil
			case errors.Is(err, net.ErrClosed):
				return nil, ErrConnClosed
			default:
				return nil, fmt.Errorf("dmcc: read backup: %w", err)
			}
		}
	}
}
