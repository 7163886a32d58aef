package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/bridge"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/device/goble"
	"github.com/lucagoc/LED-Matrix-BLE-Tools/internal/pixelcmd"
)

// runCommand executes a single command against the device and exits: one
// acquire, one dispatch, unconditional release.
func runCommand(cmd *cobra.Command, name string, params []string) error {
	logger, err := configureLogger(cmd, logrus.ErrorLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	positional, keyword := bridge.SplitParams(params)
	env := bridge.Envelope{Name: name, Positional: positional, Keyword: keyword}

	registry := pixelcmd.DefaultRegistry()
	session := device.NewSession(goble.NewTransport(logger), deviceAddress, device.DefaultSessionOptions(), logger)
	loop := bridge.NewLoop(session, bridge.NewDispatcher(registry, logger), bridge.DefaultLoopOptions(), logger)

	result, err := loop.RunOnce(ctx, env)
	if err != nil {
		return err
	}
	if result.Status != "success" {
		return fmt.Errorf("command %q failed: %s", name, result.Message)
	}

	color.Green("Command %q executed successfully.", name)
	return nil
}
