package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [ip-or-cidr]",
	Short: "Sweep a network range and enroll hosts the server has not seen",
	Long: `discover asks trustd to ping-sweep a range with nmap and register every
new host it finds. Without an argument the server's default range is used.

  trustctl discover 10.0.0.0/24`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Discover(context.Background(), target)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		return out(cmd).print(res, func(w io.Writer) error {
			enrolled := make(map[string]bool, len(res.Registered))
			for _, id := range res.Registered {
				enrolled[id] = true
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tMAC\tVENDOR\tHOSTNAME\tNEW")
			for _, h := range res.Discovered {
				id := h.IP
				if h.MAC != "" {
					id = strings.ToLower(h.MAC)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.IP, h.MAC, h.Vendor, h.Hostname, yesNo(enrolled[id]))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%d discovered, %d registered\n", len(res.Discovered), len(res.Registered))
			return nil
		})
	},
}
