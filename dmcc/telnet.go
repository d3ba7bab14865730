package dmcc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/arloliu/go-dmcc/internal/util"
)

// Telnet control bytes per RFC 854.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
)

// controlToken classifies the IAC-led sequence at the head of a buffer.
type controlToken int

const (
	// tokenNeedMore indicates the sequence is truncated at the chunk
	// boundary and must be retried once more bytes arrive.
	tokenNeedMore controlToken = iota
	// tokenEscapedIAC is the two-byte IAC IAC escape for a literal 0xFF
	// data byte.
	tokenEscapedIAC
	// tokenNegotiation is a three-byte DO/WILL request that requires a
	// refusal reply.
	tokenNegotiation
	// tokenCommand is a control sequence that is consumed without a reply:
	// a DONT/WONT acknowledgement or a two-byte command such as NOP.
	tokenCommand
)

// scanControl classifies the control sequence at the start of buf, which must
// begin with IAC. It returns the classification, the number of bytes consumed,
// and the refusal reply to send (nil unless tokenNegotiation).
func scanControl(buf []byte) (controlToken, int, []byte) {
	if len(buf) < 2 {
		return tokenNeedMore, 0, nil
	}

	cmd := buf[1]
	switch cmd {
	case IAC:
		return tokenEscapedIAC, 2, nil

	case DO, WILL, DONT, WONT:
		if len(buf) < 3 {
			return tokenNeedMore, 0, nil
		}

		opt := buf[2]
		switch cmd {
		case DO:
			return tokenNegotiation, 3, []byte{IAC, WONT, opt}
		case WILL:
			return tokenNegotiation, 3, []byte{IAC, DONT, opt}
		default:
			// DONT/WONT from the device acknowledge our refusals and
			// require no reply.
			return tokenCommand, 3, nil
		}

	default:
		// Two-byte command (NOP, AYT, ...). Dropped from the payload.
		return tokenCommand, 2, nil
	}
}

// TelnetFilter strips inline Telnet control sequences from a byte stream and
// refuses every option the device offers or requests.
//
// A control sequence truncated at a chunk boundary is buffered and re-examined
// when the next chunk arrives, so no bytes are lost under TCP segmentation.
// The zero value is ready to use. A TelnetFilter is NOT goroutine-safe and
// must not be shared across connections.
type TelnetFilter struct {
	pending []byte

	// OnNegotiation, when non-nil, is invoked once per refused option with
	// the device's request command (DO or WILL) and the option byte.
	OnNegotiation func(cmd, opt byte)
}

// Filter returns data with all Telnet control sequences removed, writing a
// refusal to w for every DO/WILL negotiation as it is discovered.
//
// The returned slice aliases neither data nor the filter's internal buffer.
// A write failure on w is a transport error; filtering stops and the bytes
// filtered so far are returned alongside the error.
func (f *TelnetFilter) Filter(w io.Writer, data []byte) ([]byte, error) {
	buf := data
	if len(f.pending) > 0 {
		buf = append(f.pending, data...)
		f.pending = nil
	}

	out := make([]byte, 0, len(buf))

	for len(buf) > 0 {
		if buf[0] != IAC {
			// Bulk-copy the literal run up to the next control marker.
			n := bytes.IndexByte(buf, IAC)
			if n < 0 {
				out = append(out, buf...)
				return out, nil
			}

			out = append(out, buf[:n]...)
			buf = buf[n:]

			continue
		}

		token, consumed, reply := scanControl(buf)
		switch token {
		case tokenNeedMore:
			// Own the trailing bytes; buf may alias the caller's chunk.
			f.pending = util.CloneSlice(buf, 0)
			return out, nil

		case tokenEscapedIAC:
			out = append(out, IAC)

		case tokenNegotiation:
			if _, err := w.Write(reply); err != nil {
				return out, fmt.Errorf("dmcc: send negotiation reply: %w", err)
			}
			if f.OnNegotiation != nil {
				f.OnNegotiation(buf[1], buf[2])
			}

		case tokenCommand:
			// Dropped.
		}

		buf = buf[consumed:]
	}

	return out, nil
}

// Pending reports whether the filter is holding a truncated control sequence
// from the previous chunk.
func (f *TelnetFilter) Pending() bool {
	return len(f.pending) > 0
}

// Reset discards any buffered partial control sequence. Call it when reusing
// a filter across sessions.
func (f *TelnetFilter) Reset() {
	f.pending = nil
}
