// Command seed drives a running trustd with a scripted fleet for development.
//
// It registers a handful of mock devices and replays a mix of fast-path
// alerts and evaluation reports so metrics and the ledger have
// realistic content. Running twice is safe: registration re-issues the
// credential and resets each device to the initial trust.
//
// Usage:
//
//	go run ./cmd/seed
//	TRUSTD_URL=http://localhost:8080 go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmerrifield20/trustmesh/pkg/client"
)

const defaultServer = "http://localhost:8080"

func main() {
	server := os.Getenv("TRUSTD_URL")
	if server == "" {
		server = defaultServer
	}
	if err := run(context.Background(), server, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server string, out io.Writer) error {
	c, err := client.New(server)
	if err != nil {
		return err
	}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("trustd not reachable at %s: %w", server, err)
	}
	fmt.Fprintf(out, "connected to %s\n", server)

	for _, d := range fleet {
		if _, err := c.Register(ctx, d.ID, d.PublicKey); err != nil {
			return fmt.Errorf("register %s: %w", d.ID, err)
		}
		fmt.Fprintf(out, "  register %s\n", d.ID)
	}

	for _, s := range script {
		switch s.kind {
		case stepAlert:
			res, err := c.SendAlert(ctx, s.alert)
			if err != nil {
				return fmt.Errorf("alert %s: %w", s.alert.DeviceID, err)
			}
			fmt.Fprintf(out, "  alert    %-14s %-12s %s\n", s.alert.DeviceID, s.alert.Type, res.Status)
		case stepEvaluate:
			st, err := c.Evaluate(ctx, s.alert)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", s.alert.DeviceID, err)
			}
			fmt.Fprintf(out, "  evaluate %-14s trust=%.2f revoked=%t\n", st.DeviceID, st.Trust, st.Revoked)
		}
	}

	if err := c.LogTest(ctx, "seed_scenario", "pass"); err != nil {
		return fmt.Errorf("log test: %w", err)
	}

	devices, err := c.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	fmt.Fprintf(out, "\nseed complete: %d devices\n", len(devices))
	return nil
}

// ── Fleet ────────────────────────────────────────────────────────────────────

type seedDevice struct {
	ID        string
	PublicKey string
}

var fleet = []seedDevice{
	{ID: "gateway-01", PublicKey: "ed25519:gw01"},
	{ID: "camera-lobby", PublicKey: "ed25519:cam-lobby"},
	{ID: "thermostat-3f", PublicKey: "ed25519:thermo-3f"},
	{ID: "relay-east", PublicKey: "ed25519:relay-east"},
	{ID: "sensor-dock-7", PublicKey: "ed25519:dock7"},
}

// ── Script ───────────────────────────────────────────────────────────────────

type stepKind int

const (
	stepAlert stepKind = iota
	stepEvaluate
)

type step struct {
	kind  stepKind
	alert client.Alert
}

func alert(id, typ string) step {
	return step{kind: stepAlert, alert: client.Alert{DeviceID: id, Type: typ}}
}

func evaluate(id, typ string, m client.Metrics) step {
	return step{kind: stepEvaluate, alert: client.Alert{DeviceID: id, Type: typ, Metrics: m}}
}

var script = []step{
	// A healthy gateway earning trust.
	alert("gateway-01", "benign"),
	alert("gateway-01", "benign"),
	evaluate("gateway-01", "heartbeat", client.Metrics{PacketsSent: 1000, PacketsFailed: 3}),

	// A camera probing its neighbours until it is revoked.
	alert("camera-lobby", "scan"),
	evaluate("camera-lobby", "anomaly", client.Metrics{ScanCount: 42}),
	alert("camera-lobby", "malicious"),

	// A relay silently dropping traffic.
	evaluate("relay-east", "routing", client.Metrics{PacketsSent: 500, PacketsFailed: 300}),
	evaluate("relay-east", "routing", client.Metrics{PacketsSent: 500, PacketsFailed: 150}),

	// Noise that the engine rejects.
	alert("thermostat-3f", "firmware_update"),
	alert("unknown-badge-reader", "benign"),

	// A dock sensor recovering after one bad report.
	evaluate("sensor-dock-7", "anomaly", client.Metrics{ScanCount: 11}),
	alert("sensor-dock-7", "benign"),
	alert("sensor-dock-7", "benign"),
}
