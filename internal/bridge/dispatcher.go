package bridge

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/pixelcmd"
)

// Result is the structured outcome of one processed envelope, sent back to
// the client verbatim as JSON.
type Result struct {
	Status  string `json:"status"`
	Command string `json:"command,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success builds a success result for the given command name.
func Success(command string) Result {
	return Result{Status: "success", Command: command}
}

// Failure builds an error result with the given description.
func Failure(message string) Result {
	return Result{Status: "error", Message: message}
}

// Dispatcher resolves envelopes against the command registry, encodes them
// and forwards the payload to the device session.
type Dispatcher struct {
	registry *pixelcmd.Registry
	logger   *logrus.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *pixelcmd.Registry, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch processes one envelope against the session. Unknown commands and
// encoder failures are folded into the Result and never touch the device.
// The only non-nil error return is a transport loss during the write, which
// the caller recovers from by reconnecting and replaying the same envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope, session *device.Session) (Result, error) {
	cmd, ok := d.registry.Resolve(env.Name)
	if !ok {
		d.logger.WithField("command", env.Name).Debug("Unknown command")
		return Failure("Unknown command"), nil
	}

	payload, err := cmd.Encode(env.Positional, env.Keyword)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"command": env.Name,
			"error":   err,
		}).Debug("Command encoding failed")
		return Failure(err.Error()), nil
	}

	if err := session.Write(ctx, payload); err != nil {
		if errors.Is(err, device.ErrTransportLost) {
			return Result{}, err
		}
		return Failure(err.Error()), nil
	}

	d.logger.WithFields(logrus.Fields{
		"command": env.Name,
		"bytes":   len(payload),
	}).Debug("Command written to device")
	return Success(env.Name), nil
}
