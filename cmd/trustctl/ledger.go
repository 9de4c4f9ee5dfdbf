package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jmerrifield20/trustmesh/pkg/client"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and audit the hash-chained ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ov, err := c.LedgerOverview(context.Background())
		if err != nil {
			return fmt.Errorf("ledger overview: %w", err)
		}
		return out(cmd).print(ov, func(w io.Writer) error {
			fmt.Fprintf(w, "Blocks: %s\n", humanize.Comma(int64(ov.Blocks)))
			fmt.Fprintf(w, "Root:   %s\n", ov.Root)
			return nil
		})
	},
}

// ── ledger export ────────────────────────────────────────────────────────────

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "List every block of the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		blocks, err := c.ExportLedger(context.Background())
		if err != nil {
			return fmt.Errorf("export ledger: %w", err)
		}
		return out(cmd).print(blocks, func(w io.Writer) error {
			return printBlocks(w, blocks)
		})
	},
}

// blockSummary pulls the common fields out of a block payload.
type blockSummary struct {
	Event    string `json:"event"`
	DeviceID string `json:"device_id"`
	Test     string `json:"test"`
}

func summarize(b client.Block) (event, subject string) {
	var s blockSummary
	if err := json.Unmarshal(b.Payload, &s); err != nil {
		return "?", ""
	}
	if s.DeviceID != "" {
		return s.Event, s.DeviceID
	}
	return s.Event, s.Test
}

func printBlocks(w io.Writer, blocks []client.Block) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tAGE\tEVENT\tSUBJECT\tHASH")
	for _, b := range blocks {
		event, subject := summarize(b)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			b.Index, humanize.Time(b.Time()), event, subject, shortHash(b.Hash))
	}
	return tw.Flush()
}

// ── ledger block ─────────────────────────────────────────────────────────────

var blockCmd = &cobra.Command{
	Use:   "block <index>",
	Short: "Show one block with its full payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid block index %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		b, err := c.GetBlock(context.Background(), idx)
		if err != nil {
			return fmt.Errorf("get block %d: %w", idx, err)
		}
		return out(cmd).print(b, func(w io.Writer) error {
			fmt.Fprintf(w, "Index:     %d\n", b.Index)
			fmt.Fprintf(w, "Time:      %s (%s)\n", b.Timestamp, humanize.Time(b.Time()))
			fmt.Fprintf(w, "Prev hash: %s\n", b.PrevHash)
			fmt.Fprintf(w, "Hash:      %s\n", b.Hash)
			fmt.Fprintf(w, "Payload:   %s\n", string(b.Payload))
			return nil
		})
	},
}

// ── ledger verify ────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the integrity of the whole chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		valid, reason, err := c.VerifyLedger(context.Background())
		if err != nil {
			return fmt.Errorf("verify ledger: %w", err)
		}
		v := map[string]any{"valid": valid}
		if reason != "" {
			v["reason"] = reason
		}
		if err := out(cmd).print(v, func(w io.Writer) error {
			if valid {
				fmt.Fprintln(w, "✓ Ledger is intact")
			} else {
				fmt.Fprintf(w, "✗ Ledger is broken: %s\n", reason)
			}
			return nil
		}); err != nil {
			return err
		}
		if !valid {
			return fmt.Errorf("ledger verification failed")
		}
		return nil
	},
}

// ── ledger checkpoint ────────────────────────────────────────────────────────

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Issue a signed checkpoint of the current chain tip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		cp, err := c.Checkpoint(context.Background())
		if err != nil {
			return fmt.Errorf("issue checkpoint: %w", err)
		}
		return out(cmd).print(cp, func(w io.Writer) error {
			fmt.Fprintf(w, "Length:  %d\n", cp.Length)
			fmt.Fprintf(w, "Root:    %s\n", cp.Root)
			fmt.Fprintf(w, "Expires: %s\n", humanize.Time(cp.ExpiresAt))
			fmt.Fprintf(w, "Token:   %s\n", cp.Token)
			return nil
		})
	},
}

var checkpointVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Confirm a checkpoint still matches the chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		verdict, err := c.VerifyCheckpoint(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verify checkpoint: %w", err)
		}
		if err := out(cmd).print(verdict, func(w io.Writer) error {
			if verdict.Valid {
				fmt.Fprintf(w, "✓ Checkpoint matches block %d (%s)\n", verdict.Length-1, shortHash(verdict.Root))
			} else {
				fmt.Fprintf(w, "✗ Checkpoint rejected: %s\n", verdict.Error)
			}
			return nil
		}); err != nil {
			return err
		}
		if !verdict.Valid {
			return fmt.Errorf("checkpoint verification failed")
		}
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointVerifyCmd)
	ledgerCmd.AddCommand(exportCmd, blockCmd, verifyCmd, checkpointCmd)
}
