// Package device maintains the BLE link to a single pixel-matrix display.
//
// Every client owns its own Session, mirroring the one-connection-per-client
// topology of the WebSocket bridge. Whether the peripheral accepts more than
// one simultaneous link is a hardware/stack constraint outside this package;
// deployments with many concurrent clients against one device should expect
// connect races and are documented as a known limitation.
package device

import (
	"context"
	"errors"
	"fmt"
)

// CommandCharacteristicUUID is the GATT characteristic all command payloads
// are written to. The display exposes exactly one writable command endpoint.
const CommandCharacteristicUUID = "0000fa02-0000-1000-8000-00805f9b34fb"

// ConnectionState represents the lifecycle state of a Session
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Lost         ConnectionState = "lost"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for session failures
var (
	// ErrNotConnected indicates a write was attempted without a live link.
	ErrNotConnected = &ConnectionError{State: Disconnected}

	// ErrTransportLost indicates the link dropped mid-session. This is
	// distinct from a connect failure: the owning loop reacts by discarding
	// the handle and re-acquiring, replaying the in-flight command.
	ErrTransportLost = &ConnectionError{State: Lost}

	// ErrUnavailable indicates the device could not be reached within the
	// connect retry budget.
	ErrUnavailable = errors.New("device unavailable")
)

// Conn is a live link to the peripheral's command characteristic.
type Conn interface {
	// Write sends one command payload to the command characteristic.
	Write(payload []byte) error
	// Close tears the link down. Errors are advisory; the link is
	// considered closed regardless.
	Close() error
}

// Transport abstracts the BLE primitives a Session needs, so the session
// lifecycle can be exercised against fakes.
type Transport interface {
	Connect(ctx context.Context, address string) (Conn, error)
}
