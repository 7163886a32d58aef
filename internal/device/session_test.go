package device

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// fakeConn records writes and can be scripted to fail
type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   int
	closeErr error
}

func (c *fakeConn) Write(payload []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.writes = append(c.writes, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return c.closeErr
}

// fakeTransport yields scripted connect outcomes in order
type fakeTransport struct {
	attempts int
	script   []func() (Conn, error)
}

func (t *fakeTransport) Connect(_ context.Context, _ string) (Conn, error) {
	i := t.attempts
	t.attempts++
	if i >= len(t.script) {
		i = len(t.script) - 1
	}
	return t.script[i]()
}

func connectOK(conn *fakeConn) func() (Conn, error) {
	return func() (Conn, error) { return conn, nil }
}

func connectFail(msg string) func() (Conn, error) {
	return func() (Conn, error) { return nil, errors.New(msg) }
}

type SessionTestSuite struct {
	suite.Suite
	logger *logrus.Logger
	sleeps []time.Duration
}

func (suite *SessionTestSuite) SetupTest() {
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.PanicLevel)
	suite.sleeps = nil
}

// newSession builds a session over the fake transport with recorded,
// non-blocking sleeps
func (suite *SessionTestSuite) newSession(transport Transport, opts *SessionOptions) *Session {
	s := NewSession(transport, "AA:BB:CC:DD:EE:FF", opts, suite.logger)
	s.sleep = func(_ context.Context, d time.Duration) error {
		suite.sleeps = append(suite.sleeps, d)
		return nil
	}
	return s
}

func (suite *SessionTestSuite) TestAcquire_FirstAttempt() {
	// GOAL: Verify a reachable device connects without any backoff
	//
	// TEST SCENARIO: Connect succeeds immediately → session Connected → no sleeps recorded

	transport := &fakeTransport{script: []func() (Conn, error){connectOK(&fakeConn{})}}
	session := suite.newSession(transport, nil)

	err := session.Acquire(context.Background())

	suite.Assert().NoError(err, "MUST acquire on first attempt")
	suite.Assert().Equal(Connected, session.State(), "state MUST be connected")
	suite.Assert().Equal(1, transport.attempts, "MUST connect exactly once")
	suite.Assert().Empty(suite.sleeps, "MUST NOT sleep on immediate success")
}

func (suite *SessionTestSuite) TestAcquire_RetriesWithDelay() {
	// GOAL: Verify connect failures back off with the configured delay before retrying
	//
	// TEST SCENARIO: Two failures then success → three attempts → two delays of RetryDelay

	conn := &fakeConn{}
	transport := &fakeTransport{script: []func() (Conn, error){
		connectFail("device busy"),
		connectFail("device busy"),
		connectOK(conn),
	}}
	session := suite.newSession(transport, &SessionOptions{MaxRetries: 5, RetryDelay: 5 * time.Second})

	err := session.Acquire(context.Background())

	suite.Assert().NoError(err, "MUST acquire once a connect attempt succeeds")
	suite.Assert().Equal(3, transport.attempts, "MUST stop retrying after success")
	suite.Assert().Equal([]time.Duration{5 * time.Second, 5 * time.Second}, suite.sleeps, "MUST wait RetryDelay between attempts")
}

func (suite *SessionTestSuite) TestAcquire_ExhaustsBudget() {
	// GOAL: Verify the retry budget bounds acquisition and reports unavailability
	//
	// TEST SCENARIO: Every connect fails → exactly MaxRetries attempts → ErrUnavailable, session disconnected

	transport := &fakeTransport{script: []func() (Conn, error){connectFail("no adapter")}}
	session := suite.newSession(transport, &SessionOptions{MaxRetries: 5, RetryDelay: time.Second})

	err := session.Acquire(context.Background())

	suite.Assert().Error(err, "MUST fail after exhausting retries")
	suite.Assert().ErrorIs(err, ErrUnavailable, "error MUST match ErrUnavailable")
	suite.Assert().Contains(err.Error(), "no adapter", "MUST carry the last connect error")
	suite.Assert().Equal(5, transport.attempts, "MUST attempt at most MaxRetries times")
	suite.Assert().Len(suite.sleeps, 4, "MUST NOT sleep after the final attempt")
	suite.Assert().Equal(Disconnected, session.State(), "state MUST return to disconnected")
}

func (suite *SessionTestSuite) TestAcquire_AlreadyConnected() {
	// GOAL: Verify a second Acquire on a live session is a no-op
	//
	// TEST SCENARIO: Acquire twice → transport dialed once → both calls succeed

	transport := &fakeTransport{script: []func() (Conn, error){connectOK(&fakeConn{})}}
	session := suite.newSession(transport, nil)

	suite.Require().NoError(session.Acquire(context.Background()))
	suite.Assert().NoError(session.Acquire(context.Background()), "second Acquire MUST succeed")
	suite.Assert().Equal(1, transport.attempts, "MUST NOT reconnect while connected")
}

func (suite *SessionTestSuite) TestAcquire_CancelledDuringBackoff() {
	// GOAL: Verify cancellation during the retry delay aborts acquisition
	//
	// TEST SCENARIO: Connect fails, sleep reports cancellation → Acquire returns the context error

	transport := &fakeTransport{script: []func() (Conn, error){connectFail("device busy")}}
	session := suite.newSession(transport, &SessionOptions{MaxRetries: 3, RetryDelay: time.Second})
	session.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	err := session.Acquire(context.Background())

	suite.Assert().ErrorIs(err, context.Canceled, "MUST surface cancellation")
	suite.Assert().Equal(1, transport.attempts, "MUST NOT retry after cancellation")
	suite.Assert().Equal(Disconnected, session.State(), "state MUST return to disconnected")
}

func (suite *SessionTestSuite) TestWrite_ForwardsPayload() {
	// GOAL: Verify a successful write forwards the payload unchanged
	//
	// TEST SCENARIO: Acquire then write → exactly one payload on the transport → session stays connected

	conn := &fakeConn{}
	transport := &fakeTransport{script: []func() (Conn, error){connectOK(conn)}}
	session := suite.newSession(transport, nil)
	suite.Require().NoError(session.Acquire(context.Background()))

	err := session.Write(context.Background(), []byte{0x05, 0x00, 0x04, 0x80, 0x50})

	suite.Assert().NoError(err, "write MUST succeed")
	suite.Assert().Equal([][]byte{{0x05, 0x00, 0x04, 0x80, 0x50}}, conn.writes, "payload MUST reach the device verbatim")
	suite.Assert().Equal(Connected, session.State(), "state MUST stay connected")
}

func (suite *SessionTestSuite) TestWrite_NotConnected() {
	// GOAL: Verify writing without a live link is rejected
	//
	// TEST SCENARIO: Write before Acquire → ErrNotConnected returned

	session := suite.newSession(&fakeTransport{script: []func() (Conn, error){connectOK(&fakeConn{})}}, nil)

	err := session.Write(context.Background(), []byte{0x01})

	suite.Assert().ErrorIs(err, ErrNotConnected, "MUST report not connected")
}

func (suite *SessionTestSuite) TestWrite_TransportLost() {
	// GOAL: Verify a failing write marks the session lost and drops the handle
	//
	// TEST SCENARIO: Write fails at transport level → ErrTransportLost, handle closed → next write reports not connected

	conn := &fakeConn{writeErr: fmt.Errorf("ATT write failed")}
	transport := &fakeTransport{script: []func() (Conn, error){connectOK(conn)}}
	session := suite.newSession(transport, nil)
	suite.Require().NoError(session.Acquire(context.Background()))

	err := session.Write(context.Background(), []byte{0x01})

	suite.Assert().ErrorIs(err, ErrTransportLost, "MUST report transport loss")
	suite.Assert().NotErrorIs(err, ErrNotConnected, "transport loss MUST be distinct from not-connected")
	suite.Assert().Equal(Lost, session.State(), "state MUST be lost")
	suite.Assert().Equal(1, conn.closed, "dead handle MUST be closed")

	suite.Assert().ErrorIs(session.Write(context.Background(), []byte{0x02}), ErrNotConnected,
		"subsequent writes MUST see no handle until re-acquired")
}

func (suite *SessionTestSuite) TestWrite_ReacquireAfterLoss() {
	// GOAL: Verify a lost session can be re-acquired and written again
	//
	// TEST SCENARIO: Write fails → Acquire again → write succeeds on the new handle

	dead := &fakeConn{writeErr: fmt.Errorf("connection reset")}
	live := &fakeConn{}
	transport := &fakeTransport{script: []func() (Conn, error){connectOK(dead), connectOK(live)}}
	session := suite.newSession(transport, nil)
	suite.Require().NoError(session.Acquire(context.Background()))

	suite.Require().ErrorIs(session.Write(context.Background(), []byte{0x01}), ErrTransportLost)
	suite.Require().NoError(session.Acquire(context.Background()), "re-acquire after loss MUST succeed")

	suite.Assert().NoError(session.Write(context.Background(), []byte{0x02}), "write on new handle MUST succeed")
	suite.Assert().Equal([][]byte{{0x02}}, live.writes, "payload MUST go to the fresh handle")
}

func (suite *SessionTestSuite) TestRelease_Idempotent() {
	// GOAL: Verify release is unconditional, idempotent and swallows disconnect errors
	//
	// TEST SCENARIO: Release twice, once with a failing Close → no panic, handle closed once, state disconnected

	conn := &fakeConn{closeErr: fmt.Errorf("already disconnecting")}
	transport := &fakeTransport{script: []func() (Conn, error){connectOK(conn)}}
	session := suite.newSession(transport, nil)
	suite.Require().NoError(session.Acquire(context.Background()))

	session.Release()
	session.Release()

	suite.Assert().Equal(1, conn.closed, "handle MUST be closed exactly once")
	suite.Assert().Equal(Disconnected, session.State(), "state MUST be disconnected")
}

func (suite *SessionTestSuite) TestDefaultOptions() {
	// GOAL: Verify the default retry budget matches the documented policy
	//
	// TEST SCENARIO: DefaultSessionOptions → 5 attempts, 5s delay

	opts := DefaultSessionOptions()

	suite.Assert().Equal(5, opts.MaxRetries, "default retry count MUST be 5")
	suite.Assert().Equal(5*time.Second, opts.RetryDelay, "default retry delay MUST be 5s")
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
