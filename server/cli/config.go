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
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/metal-stack/dhcpd/leases"
)

// networkConfig is what every command needs to know about the managed
// network.
type networkConfig struct {
	Range    *leases.Range
	Excluded []net.IP
	Static   []*leases.Lease
}

func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("prefix", "p", "", "Managed network in address/prefix form, e.g. 192.168.0.0/24")
	cmd.Flags().StringSliceP("exclude", "e", nil, "Addresses never handed out, comma separated")
	cmd.Flags().StringP("static", "s", "", "File of static allocations, one \"<mac> <ip>\" pair per line")
}

// bindFlags makes viper read cmd's flags. Commands share flag names, so
// this has to happen once the command to run is known.
func bindFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func loadNetworkConfig() (*networkConfig, error) {
	prefix := viper.GetString("prefix")
	if prefix == "" {
		return nil, errors.New("no managed network given, use --prefix")
	}
	r, err := leases.ParseRange(prefix)
	if err != nil {
		return nil, err
	}

	cfg := &networkConfig{Range: r}
	for _, e := range viper.GetStringSlice("exclude") {
		// Environment variables arrive unsplit.
		for _, s := range strings.Split(e, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			ip := net.ParseIP(s).To4()
			if ip == nil {
				return nil, fmt.Errorf("%w: invalid excluded address %q", leases.ErrInvalidRange, s)
			}
			cfg.Excluded = append(cfg.Excluded, ip)
		}
	}

	if path := viper.GetString("static"); path != "" {
		cfg.Static, err = leases.LoadStaticFile(path)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *networkConfig) newStore(leaseTime, offerTimeout time.Duration) (*leases.Store, error) {
	return leases.NewStore(leases.Config{
		Range:        c.Range,
		Excluded:     c.Excluded,
		Static:       c.Static,
		LeaseTime:    leaseTime,
		OfferTimeout: offerTimeout,
	})
}
