package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"checkin-backend/internal/badge"
	"checkin-backend/internal/keystroke"
	"checkin-backend/internal/session"
	"checkin-backend/internal/source"
)

type scanOptions struct {
	IdleTimeout time.Duration
	Formatted   bool
}

func newScanCommand() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print badge scans read from this terminal",
		Long:  `Read a keyboard-wedge NFC reader from standard input and print every decoded badge identifier. No database is needed. Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts)
		},
	}

	cmd.Flags().DurationVar(&opts.IdleTimeout, "idle-timeout", keystroke.DefaultIdleTimeout, "Longest gap between keystrokes of one scan")
	cmd.Flags().BoolVar(&opts.Formatted, "formatted", false, "Print identifiers in grouped display form")

	return cmd
}

func runScan(opts *scanOptions) error {
	// Raw mode disables output post-processing, hence the explicit \r.
	out := os.Stdout

	var terminal *source.Terminal
	bus := keystroke.NewBus(keystroke.WithListenHook(func(active bool) {
		if terminal != nil {
			terminal.SetListening(active)
		}
	}))
	defer bus.Close()
	terminal = source.NewTerminal(os.Stdin, bus, nil)

	var ctrl *session.Controller
	ctrl = session.New(bus, session.Options{
		Name:        "scan",
		IdleTimeout: opts.IdleTimeout,
		OnCardRead: func(id string) {
			if opts.Formatted {
				id = badge.Format(id)
			}
			fmt.Fprintf(out, "%s\r\n", id)
		},
		OnReadError: func(raw string, err error) {
			fmt.Fprintf(out, "error: %v (%q)\r\n", err, raw)
			ctrl.ClearError()
		},
	})
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl.SetEnabled(true)
	if terminal.IsTerminal() {
		fmt.Fprint(out, "Waiting for badges, Ctrl-C to quit\r\n")
	} else {
		logrus.Debug("Standard input is not a terminal; reading until EOF")
	}
	return terminal.Run(ctx)
}
