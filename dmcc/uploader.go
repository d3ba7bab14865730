package dmcc

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	loadCommandPrefix = "||>CONFIG.LOAD "
	saveCommand       = "||>CONFIG.SAVE"
	rebootCommand     = "||>REBOOT"
	beepCommand       = "||>BEEP 3,2"
)

// UploadStep identifies one command of the configuration push sequence.
type UploadStep string

const (
	StepLoad   UploadStep = "CONFIG.LOAD"
	StepSave   UploadStep = "CONFIG.SAVE"
	StepReboot UploadStep = "REBOOT"
	StepBeep   UploadStep = "BEEP"
)

// StepError reports a failure during one step of the push sequence.
//
// Steps before the failing one have already reached the device, so the
// caller must not assume the device kept its previous configuration.
type StepError struct {
	Step UploadStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("dmcc: upload step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PushConfig pushes a new configuration to the device and makes it take
// effect: CONFIG.LOAD with the payload, CONFIG.SAVE, REBOOT, BEEP, in that
// order, with a settle delay between steps.
//
// The load payload is the command line "||>CONFIG.LOAD <N>\r\n" followed
// immediately by the N raw configuration bytes, sent as one write. No step
// produces a parsed response; the only failure mode is a transport error,
// which aborts the remaining steps and is reported as a [StepError] naming
// the step that failed.
func (c *Connection) PushConfig(ctx context.Context, payload []byte) error {
	if c.conn == nil {
		return ErrConnClosed
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	load := make([]byte, 0, len(loadCommandPrefix)+20+len(payload))
	load = append(load, loadCommandPrefix...)
	load = strconv.AppendInt(load, int64(len(payload)), 10)
	load = append(load, '\r', '\n')
	load = append(load, payload...)

	steps := []struct {
		step   UploadStep
		send   func() error
		settle time.Duration
	}{
		{StepLoad, func() error { return c.write(load) }, c.cfg.settleDelay},
		{StepSave, func() error { return c.SendLine(saveCommand) }, c.cfg.settleDelay},
		{StepReboot, func() error { return c.SendLine(rebootCommand) }, c.cfg.rebootDelay},
		{StepBeep, func() error { return c.SendLine(beepCommand) }, c.cfg.settleDelay},
	}

	for _, s := range steps {
		c.logger.Debug("dmcc: sending upload step", "addr", c.cfg.Addr(), "step", string(s.step))

		if err := s.send(); err != nil {
			return &StepError{Step: s.step, Err: err}
		}
		c.metrics.incCommandCount()

		if err := c.settle(ctx, s.settle); err != nil {
			return &StepError{Step: s.step, Err: err}
		}
	}

	return nil
}
