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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/metal-stack/v"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/metal-stack/dhcpd/dhcp4"
	"github.com/metal-stack/dhcpd/leases"
	"github.com/metal-stack/dhcpd/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve DHCP for the managed network",
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadNetworkConfig()
		if err != nil {
			_ = cmd.Usage()
			return err
		}
		store, err := cfg.newStore(viper.GetDuration("lease-time"), viper.GetDuration("offer-timeout"))
		if err != nil {
			_ = cmd.Usage()
			return err
		}

		log, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		log.Infow("starting dhcpd", "version", v.V.String())

		r := store.Range()
		for _, l := range cfg.Static {
			if !r.Contains(l.IP) || r.IsServer(l.IP) {
				log.Warnw("static allocation is not assignable on the managed network", "mac", l.HardwareAddr, "ip", l.IP, "network", r)
			}
		}

		s := &server.Server{
			Store:      store,
			Log:        log,
			ListenAddr: viper.GetString("listen-addr"),
			HTTPAddr:   viper.GetString("http-addr"),
		}
		if path := viper.GetString("trace-file"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating trace file: %w", err)
			}
			defer f.Close()
			s.Trace = f
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addNetworkFlags(serveCmd)
	serveCmd.Flags().Duration("lease-time", leases.DefaultLeaseTime, "Duration of dynamic leases")
	serveCmd.Flags().Duration("offer-timeout", leases.DefaultOfferTimeout, "How long an offered address is held for the client")
	serveCmd.Flags().String("listen-addr", fmt.Sprintf(":%d", dhcp4.ServerPort), "UDP address to serve DHCP on")
	serveCmd.Flags().String("http-addr", "", "Address to serve lease status and metrics on, disabled if empty")
	serveCmd.Flags().String("trace-file", "", "Write every DHCP datagram to this pcap file")
}
