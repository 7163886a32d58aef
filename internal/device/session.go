package device

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionOptions configures connect retry behavior
type SessionOptions struct {
	MaxRetries int           // connect attempts per Acquire before giving up
	RetryDelay time.Duration // wait between attempts
}

// DefaultSessionOptions returns the default retry budget
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		MaxRetries: 5,
		RetryDelay: 5 * time.Second,
	}
}

// Session owns the BLE connection lifecycle for one device address:
// connect with bounded retry, write, release. At most one live Conn at a
// time. A Session is created per client interaction and released when the
// interaction ends.
type Session struct {
	address   string
	transport Transport
	opts      *SessionOptions
	logger    *logrus.Logger

	// sleep waits between connect attempts; overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	conn  Conn
	state ConnectionState
}

// NewSession creates a disconnected session for the given address.
func NewSession(transport Transport, address string, opts *SessionOptions, logger *logrus.Logger) *Session {
	if opts == nil {
		opts = DefaultSessionOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		address:   address,
		transport: transport,
		opts:      opts,
		logger:    logger,
		sleep:     sleepCtx,
		state:     Disconnected,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Address returns the device address this session is bound to.
func (s *Session) Address() string {
	return s.address
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire establishes the BLE link, retrying up to MaxRetries times with
// RetryDelay between attempts. Connect failures never escape as-is: after
// the budget is exhausted Acquire returns ErrUnavailable and the caller
// decides whether to give up. This is the only place connect backoff lives.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	s.state = Connecting

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		conn, err := s.transport.Connect(ctx, s.address)
		if err == nil {
			s.logger.WithField("address", s.address).Info("Connected to the device")
			s.conn = conn
			s.state = Connected
			return nil
		}
		lastErr = err

		s.logger.WithFields(logrus.Fields{
			"address": s.address,
			"attempt": attempt,
			"max":     s.opts.MaxRetries,
			"error":   err,
		}).Error("Connection failed")

		if attempt == s.opts.MaxRetries {
			break
		}
		if err := s.sleep(ctx, s.opts.RetryDelay); err != nil {
			s.state = Disconnected
			return err
		}
	}

	s.logger.WithField("address", s.address).Error("Could not connect to the device after multiple attempts")
	s.state = Disconnected
	if lastErr != nil {
		return &unavailableError{cause: lastErr}
	}
	return ErrUnavailable
}

// Write forwards one payload to the device's command characteristic.
// A transport-level failure marks the session Lost, discards the handle
// and returns an error matching ErrTransportLost; the caller re-runs
// Acquire to recover.
func (s *Session) Write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	if err := s.conn.Write(payload); err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": s.address,
			"error":   err,
		}).Error("BLE write failed, connection lost")
		_ = s.conn.Close()
		s.conn = nil
		s.state = Lost
		return &ConnectionError{State: Lost, Msg: err.Error()}
	}
	return nil
}

// Release disconnects unconditionally. Idempotent; disconnect errors are
// swallowed, the session is released regardless.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.WithFields(logrus.Fields{
				"address": s.address,
				"error":   err,
			}).Warn("Disconnect failed during release")
		}
		s.conn = nil
	}
	s.state = Disconnected
}

// unavailableError wraps the last connect error while matching ErrUnavailable
type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return ErrUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *unavailableError) Unwrap() error {
	return e.cause
}
