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

package leases

import (
	"net"
	"time"
)

// Lease binds a hardware address to an IPv4 address.
type Lease struct {
	HardwareAddr net.HardwareAddr
	IP           net.IP
	Start        time.Time
	// End is meaningless for static leases.
	End time.Time
	// Static leases come from the static allocation file. They never
	// expire and cannot be released by clients.
	Static bool
}

// Expired reports whether l ended strictly before now.
func (l *Lease) Expired(now time.Time) bool {
	return !l.Static && l.End.Before(now)
}

// Remaining is the time left on l, zero once it has expired.
func (l *Lease) Remaining(now time.Time) time.Duration {
	if l.Static {
		return 0
	}
	if d := l.End.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (l *Lease) clone() *Lease {
	c := *l
	c.HardwareAddr = append(net.HardwareAddr(nil), l.HardwareAddr...)
	c.IP = append(net.IP(nil), l.IP...)
	return &c
}

// Offer is an address handed out in a DHCPOFFER and not yet
// acknowledged. It is neither free nor leased.
type Offer struct {
	HardwareAddr  net.HardwareAddr
	IP            net.IP
	TransactionID uint32
	Expires       time.Time
}

func (o *Offer) clone() *Offer {
	c := *o
	c.HardwareAddr = append(net.HardwareAddr(nil), o.HardwareAddr...)
	c.IP = append(net.IP(nil), o.IP...)
	return &c
}

// hwKey keys the lease and offer tables by the exact hardware address
// bytes.
func hwKey(hw net.HardwareAddr) string {
	return string(hw)
}
