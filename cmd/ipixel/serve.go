package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/bridge"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device/goble"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/pixelcmd"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/server"
)

// runServer starts the WebSocket bridge and blocks until interrupted.
func runServer(cmd *cobra.Command) error {
	logger, err := configureLogger(cmd, logrus.InfoLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(&server.Options{
		Addr:           fmt.Sprintf("localhost:%d", listenPort),
		DeviceAddress:  deviceAddress,
		SessionOptions: device.DefaultSessionOptions(),
		LoopOptions:    bridge.DefaultLoopOptions(),
	}, pixelcmd.DefaultRegistry(), goble.NewTransport(logger), logger)

	return srv.Start(ctx)
}
