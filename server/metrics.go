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

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/metal-stack/dhcpd/leases"
)

type metrics struct {
	received *prometheus.CounterVec
	replies  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	expired  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, store *leases.Store) *metrics {
	m := &metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dhcpd",
			Name:      "received_messages_total",
			Help:      "DHCP messages received, by message type.",
		}, []string{"type"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dhcpd",
			Name:      "replies_total",
			Help:      "DHCP replies sent, by message type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dhcpd",
			Name:      "dropped_packets_total",
			Help:      "Datagrams that did not produce a reply on the wire, by reason.",
		}, []string{"reason"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dhcpd",
			Name:      "expired_leases_total",
			Help:      "Dynamic leases removed because they ran out.",
		}),
	}

	gauge := func(name, help string, f func(leases.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "dhcpd",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f(store.Stats())) })
	}

	reg.MustRegister(
		m.received,
		m.replies,
		m.dropped,
		m.expired,
		gauge("pool_free_addresses", "Addresses available for assignment.", func(s leases.Stats) int { return s.Free }),
		gauge("leases_active", "Leases in the lease table, static ones included.", func(s leases.Stats) int { return s.Leases }),
		gauge("leases_static", "Static leases in the lease table.", func(s leases.Stats) int { return s.Static }),
		gauge("offers_pending", "Offered addresses not yet requested.", func(s leases.Stats) int { return s.Offers }),
		gauge("declined_addresses", "Addresses kept out of the pool after a DHCPDECLINE.", func(s leases.Stats) int { return s.Declined }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Reasons for dropped packets.
const (
	dropMalformed = "malformed"
	dropNoReply   = "no_reply"
	dropSendError = "send_error"
)
