package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jmerrifield20/trustmesh/pkg/client"
	"github.com/spf13/cobra"
)

// ── register ─────────────────────────────────────────────────────────────────

var regPublicKey string

var registerCmd = &cobra.Command{
	Use:   "register <device-id>",
	Short: "Register a device and issue its credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Register(context.Background(), args[0], regPublicKey)
		if err != nil {
			return fmt.Errorf("register device: %w", err)
		}
		return out(cmd).print(res, func(w io.Writer) error {
			fmt.Fprintf(w, "✓ Device registered\n\n")
			fmt.Fprintf(w, "  Device:     %s\n", res.Certificate.DeviceID)
			fmt.Fprintf(w, "  Credential: %s\n", res.Certificate.CredentialID)
			fmt.Fprintf(w, "  Public key: %s\n", res.PublicKey)
			return nil
		})
	},
}

func init() {
	registerCmd.Flags().StringVar(&regPublicKey, "public-key", "", "Device public key (opaque)")
}

// ── alert / evaluate ─────────────────────────────────────────────────────────

var (
	alertType          string
	alertDetails       string
	alertScanCount     int64
	alertPacketsSent   int64
	alertPacketsFailed int64
)

func alertFromFlags(deviceID string) client.Alert {
	a := client.Alert{
		DeviceID: deviceID,
		Type:     alertType,
		Metrics: client.Metrics{
			ScanCount:     alertScanCount,
			PacketsSent:   alertPacketsSent,
			PacketsFailed: alertPacketsFailed,
		},
	}
	if alertDetails != "" {
		a.Details = alertDetails
	}
	return a
}

func addAlertFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&alertType, "type", "", "Alert type (e.g. benign, scan, ddos)")
	cmd.Flags().StringVar(&alertDetails, "details", "", "Free-form alert details")
	cmd.Flags().Int64Var(&alertScanCount, "scan-count", 0, "Observed scan count")
	cmd.Flags().Int64Var(&alertPacketsSent, "packets-sent", 0, "Packets the device was asked to forward")
	cmd.Flags().Int64Var(&alertPacketsFailed, "packets-failed", 0, "Packets the device failed to forward")
}

var alertCmd = &cobra.Command{
	Use:   "alert <device-id>",
	Short: "Report a security alert through the fast path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.SendAlert(context.Background(), alertFromFlags(args[0]))
		if err != nil {
			return fmt.Errorf("send alert: %w", err)
		}
		return out(cmd).print(res, func(w io.Writer) error {
			if res.Accepted() {
				fmt.Fprintln(w, "✓ Alert accepted")
			} else {
				fmt.Fprintf(w, "✗ Alert rejected: %s\n", res.Reason)
			}
			return nil
		})
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <device-id>",
	Short: "Run an alert through the rule-based evaluation pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		st, err := c.Evaluate(context.Background(), alertFromFlags(args[0]))
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		return out(cmd).print(st, func(w io.Writer) error {
			return printDevices(w, []client.DeviceStatus{*st})
		})
	},
}

func init() {
	addAlertFlags(alertCmd)
	addAlertFlags(evaluateCmd)
}

// ── devices / trust ──────────────────────────────────────────────────────────

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List tracked devices with their trust and revocation state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		devices, err := c.ListDevices(context.Background())
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		return out(cmd).print(devices, func(w io.Writer) error {
			if len(devices) == 0 {
				fmt.Fprintln(w, "no devices")
				return nil
			}
			return printDevices(w, devices)
		})
	},
}

func printDevices(w io.Writer, devices []client.DeviceStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tTRUST\tREVOKED")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\n", d.DeviceID, d.Trust, yesNo(d.Revoked))
	}
	return tw.Flush()
}

var trustCmd = &cobra.Command{
	Use:   "trust <device-id>",
	Short: "Show the trust score of one device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		score, err := c.Trust(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get trust: %w", err)
		}
		v := map[string]any{"device_id": args[0], "trust": score}
		return out(cmd).print(v, func(w io.Writer) error {
			fmt.Fprintf(w, "%s: %.2f\n", args[0], score)
			return nil
		})
	},
}

// ── log-test ─────────────────────────────────────────────────────────────────

var logTestCmd = &cobra.Command{
	Use:   "log-test <test> <status>",
	Short: "Record an external test outcome in the ledger",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.LogTest(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("log test: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged %s: %s\n", args[0], args[1])
		return nil
	},
}
