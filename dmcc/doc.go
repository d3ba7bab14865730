// Package dmcc implements the DMCC command protocol used by networked
// industrial vision sensors, carried over a Telnet-framed TCP stream.
//
// DMCC is a line-oriented protocol: each command is a single CRLF-terminated
// line prefixed with "||>" (e.g. "||>DEVICE.BACKUP"). The device wraps the
// stream in minimal Telnet framing and may interleave option negotiation
// sequences (IAC ...) with payload bytes at any point. This package refuses
// every offered option (WONT to DO, DONT to WILL) and strips all control
// sequences from the payload before it reaches the caller.
//
// # Protocol Overview
//
//   - DEVICE.BACKUP — dump the full device configuration. The device does not
//     frame the response; the reader accumulates bytes until the line goes
//     idle, an overall wall-clock limit elapses, or a size cap is reached.
//   - CONFIG.LOAD <N> — push N raw configuration bytes, sent as a single
//     write immediately after the command line.
//   - CONFIG.SAVE — persist the loaded configuration to flash.
//   - REBOOT — restart the device so the saved configuration takes effect.
//   - BEEP 3,2 — audible confirmation cue for the technician.
//
// None of the commands produce a parsed response; the only failure mode is a
// transport-level I/O error.
//
// # Timeouts
//
// Three timers bound the backup read loop:
//
//   - idle timeout: maximum silence before the transmission is considered
//     complete (default 1s)
//   - overall limit: hard wall-clock cap regardless of activity (default 20s)
//   - size cap: maximum accumulated payload bytes (default 50 MiB)
//
// All timeouts are explicit per-connection configuration; nothing in this
// package mutates process-wide socket state.
package dmcc
