package bridge

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
)

// ErrRecoveryExhausted indicates the per-client reconnect budget was spent
// on a persistently flaky link; the client interaction ends after one final
// error result.
var ErrRecoveryExhausted = errors.New("transport recovery budget exhausted")

// ClientConn abstracts one client's message transport. Receive blocks until
// a message arrives or the peer goes away; Send delivers one result.
type ClientConn interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, result Result) error
}

// LoopOptions configures per-client loop behavior
type LoopOptions struct {
	// MaxRecoveries caps consecutive transport-loss recoveries. A
	// successful dispatch resets the count.
	MaxRecoveries int
}

// DefaultLoopOptions returns the default recovery budget
func DefaultLoopOptions() *LoopOptions {
	return &LoopOptions{MaxRecoveries: 3}
}

// Loop drives one client interaction: receive → parse → dispatch → respond,
// strictly one response per received message, in order. Application-level
// failures become error results and keep the loop alive; only
// connection-layer failures end it. The device session is released on every
// exit path.
type Loop struct {
	session    *device.Session
	dispatcher *Dispatcher
	opts       *LoopOptions
	logger     *logrus.Logger

	// consecutive transport-loss recoveries; reset by a successful dispatch
	losses int
}

// NewLoop creates a session loop for one client.
func NewLoop(session *device.Session, dispatcher *Dispatcher, opts *LoopOptions, logger *logrus.Logger) *Loop {
	if opts == nil {
		opts = DefaultLoopOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		session:    session,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
}

// Run serves the client until it disconnects or a connection-layer failure
// ends the interaction. Acquisition failure terminates the client silently,
// matching the device-unreachable contract.
func (l *Loop) Run(ctx context.Context, conn ClientConn) error {
	if err := l.session.Acquire(ctx); err != nil {
		l.logger.WithField("error", err).Error("Device acquisition failed, dropping client")
		return err
	}
	defer l.session.Release()

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			// Peer close (or cancellation) ends the loop normally.
			l.logger.WithField("reason", err).Info("Client connection closed")
			return nil
		}

		result, fatal := l.process(ctx, msg)
		if sendErr := conn.Send(ctx, result); sendErr != nil {
			l.logger.WithField("error", sendErr).Info("Client went away during response")
			return nil
		}
		if fatal != nil {
			return fatal
		}
	}
}

// RunOnce dispatches a single pre-parsed envelope: acquire, dispatch,
// release. No transport-loss replay; one-shot callers expect no further
// traffic.
func (l *Loop) RunOnce(ctx context.Context, env Envelope) (Result, error) {
	if err := l.session.Acquire(ctx); err != nil {
		return Failure(err.Error()), err
	}
	defer l.session.Release()

	result, err := l.dispatcher.Dispatch(ctx, env, l.session)
	if err != nil {
		return Failure(err.Error()), err
	}
	return result, nil
}

// process turns one raw message into exactly one result. A non-nil fatal
// error means the interaction must end after the result is sent.
func (l *Loop) process(ctx context.Context, msg []byte) (Result, error) {
	env, err := ParseEnvelope(msg)
	if err != nil {
		return Failure(err.Error()), nil
	}

	for {
		result, err := l.dispatcher.Dispatch(ctx, env, l.session)
		if err == nil {
			l.losses = 0
			return result, nil
		}
		if !errors.Is(err, device.ErrTransportLost) {
			return Failure(err.Error()), nil
		}

		// Transport lost mid-write: reconnect and replay the same
		// envelope, bounded so a link that drops on every reconnect
		// cannot retry forever.
		l.losses++
		if l.losses > l.opts.MaxRecoveries {
			l.logger.WithField("recoveries", l.losses-1).Error("Reconnect budget exhausted, dropping client")
			return Failure("device connection lost"), ErrRecoveryExhausted
		}

		l.logger.WithFields(logrus.Fields{
			"command":  env.Name,
			"recovery": l.losses,
			"max":      l.opts.MaxRecoveries,
		}).Warn("BLE connection lost, attempting to reconnect...")

		if err := l.session.Acquire(ctx); err != nil {
			l.logger.WithField("error", err).Error("Reconnect failed, dropping client")
			return Failure("device connection lost"), err
		}
	}
}
