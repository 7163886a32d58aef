// Package goble backs device.Transport with the go-ble stack.
package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
)

// DefaultConnectTimeout bounds a single dial + profile discovery.
const DefaultConnectTimeout = 30 * time.Second

// normalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes).
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// Transport implements device.Transport on top of go-ble.
type Transport struct {
	logger         *logrus.Logger
	connectTimeout time.Duration
}

// NewTransport creates a go-ble backed transport.
func NewTransport(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{
		logger:         logger,
		connectTimeout: DefaultConnectTimeout,
	}
}

// Connect dials the peripheral, discovers its GATT profile and locates the
// command characteristic. One transport Connect maps to one Session handle.
func (t *Transport) Connect(ctx context.Context, address string) (device.Conn, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	dev, err := DeviceFactory()
	if err != nil {
		t.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	connCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	t.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, err)
	}

	t.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	char := findCharacteristic(profile, device.CommandCharacteristicUUID)
	if char == nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after missing characteristic")
		}
		return nil, fmt.Errorf("characteristic %q not found on device %q", device.CommandCharacteristicUUID, address)
	}

	t.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Debug("Profile discovered successfully")

	return &bleConn{client: client, char: char, logger: t.logger}, nil
}

func findCharacteristic(profile *ble.Profile, uuid string) *ble.Characteristic {
	want := normalizeUUID(uuid)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			if normalizeUUID(char.UUID.String()) == want {
				return char
			}
		}
	}
	return nil
}

// bleConn is a live go-ble link bound to the command characteristic.
type bleConn struct {
	client ble.Client
	char   *ble.Characteristic
	logger *logrus.Logger

	writeMutex sync.Mutex
	closeOnce  sync.Once
	closeErr   error
}

// Write sends one payload to the command characteristic with response.
func (c *bleConn) Write(payload []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if err := c.client.WriteCharacteristic(c.char, payload, false); err != nil {
		return fmt.Errorf("failed to write characteristic: %w", err)
	}
	return nil
}

// Close cancels the connection. Safe to call more than once.
func (c *bleConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.CancelConnection()
	})
	return c.closeErr
}
