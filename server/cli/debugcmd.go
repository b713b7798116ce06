// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcpd/dhcp4"
	"github.com/metal-stack/dhcpd/leases"
	"github.com/metal-stack/dhcpd/pcap"
)

var (
	debugCmd = &cobra.Command{
		Use:    "debug",
		Short:  "Internal debugging commands",
		Hidden: true,
	}
	debugPoolCmd = &cobra.Command{
		Use:     "pool",
		Short:   "Print the address pool the server would start with",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadNetworkConfig()
			if err != nil {
				return err
			}
			store, err := cfg.newStore(leases.DefaultLeaseTime, leases.DefaultOfferTimeout)
			if err != nil {
				return err
			}
			printPool(cmd.OutOrStdout(), store)
			return nil
		},
	}
	debugTraceCmd = &cobra.Command{
		Use:   "trace file.pcap",
		Short: "Decode a trace written by serve --trace-file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return printTrace(cmd.OutOrStdout(), f)
		},
	}
)

func init() {
	addNetworkFlags(debugPoolCmd)
	debugCmd.AddCommand(debugPoolCmd)
	debugCmd.AddCommand(debugTraceCmd)
	rootCmd.AddCommand(debugCmd)
}

func printPool(w io.Writer, store *leases.Store) {
	snap := store.Snapshot()
	r := snap.Range
	fmt.Fprintf(w, "network:   %s\n", r)
	fmt.Fprintf(w, "server:    %s\n", r.Server)
	fmt.Fprintf(w, "range:     %s - %s\n", r.First, r.Last)
	fmt.Fprintf(w, "broadcast: %s\n", r.Broadcast)
	fmt.Fprintf(w, "free:      %d of %d\n", snap.Free, r.Size())
	for _, s := range snap.Pool {
		fmt.Fprintf(w, "  %s\n", s)
	}
	for _, l := range snap.Leases {
		fmt.Fprintf(w, "static:    %s %s\n", l.HardwareAddr, l.IP)
	}
}

func printTrace(w io.Writer, r io.Reader) error {
	pr, err := pcap.NewReader(r)
	if err != nil {
		return err
	}
	if pr.LinkType != pcap.LinkRaw {
		return fmt.Errorf("trace has link type %s, want %s", pr.LinkType, pcap.LinkRaw)
	}
	for {
		pkt, err := pr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		d, err := pcap.DecodeUDP(pkt.Bytes)
		if err != nil {
			fmt.Fprintf(w, "%s undecodable frame: %s\n", pkt.Timestamp.UTC().Format("15:04:05.000"), err)
			continue
		}
		fmt.Fprintf(w, "%s %s -> %s\n", pkt.Timestamp.UTC().Format("15:04:05.000"), d.Src, d.Dst)
		msg, err := dhcp4.Unmarshal(d.Payload)
		if err != nil {
			fmt.Fprintf(w, "  %s\n", err)
			continue
		}
		fmt.Fprint(w, msg.DebugString())
	}
}
