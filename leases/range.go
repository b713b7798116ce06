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

// Package leases keeps the address pool and the lease table of a
// DHCP server for a single managed IPv4 network.
package leases

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned, wrapped, for an unusable managed network.
var ErrInvalidRange = errors.New("invalid managed network")

// Range is the managed network. It is computed once at startup and
// never changes.
type Range struct {
	Network   net.IP
	Mask      net.IPMask
	First     net.IP
	Last      net.IP
	Broadcast net.IP
	// Server is the address the server identifies itself with. It is
	// always First.
	Server net.IP

	network, first, last, broadcast uint32
}

// NewRange derives the managed range of ip/prefix. Host bits in ip are
// ignored. The prefix must leave room for at least two usable hosts.
func NewRange(ip net.IP, prefix int) (*Range, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrInvalidRange, ip)
	}
	if prefix < 1 || prefix > 30 {
		return nil, fmt.Errorf("%w: prefix length %d is outside 1-30", ErrInvalidRange, prefix)
	}

	mask := net.CIDRMask(prefix, 32)
	m := binary.BigEndian.Uint32(mask)
	network := ipToUint32(ip4) & m
	broadcast := network | ^m

	r := &Range{
		Mask:      mask,
		network:   network,
		first:     network + 1,
		last:      broadcast - 1,
		broadcast: broadcast,
	}
	r.Network = uint32ToIP(r.network)
	r.First = uint32ToIP(r.first)
	r.Last = uint32ToIP(r.last)
	r.Broadcast = uint32ToIP(r.broadcast)
	r.Server = r.First
	return r, nil
}

// ParseRange parses "a.b.c.d/prefix".
func ParseRange(s string) (*Range, error) {
	addr, bits, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in address/prefix form", ErrInvalidRange, s)
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid IP address %q", ErrInvalidRange, addr)
	}
	prefix, err := strconv.Atoi(bits)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid prefix length %q", ErrInvalidRange, bits)
	}
	return NewRange(ip, prefix)
}

// Contains reports whether ip lies in [First, Last].
func (r *Range) Contains(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	a := ipToUint32(ip4)
	return a >= r.first && a <= r.last
}

// IsServer reports whether ip is the server's own address.
func (r *Range) IsServer(ip net.IP) bool {
	return r.Server.Equal(ip)
}

// Size is the number of usable host addresses, server included.
func (r *Range) Size() int {
	return int(r.last-r.first) + 1
}

func (r *Range) String() string {
	ones, _ := r.Mask.Size()
	return fmt.Sprintf("%s/%d", r.Network, ones)
}

func ipToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func uint32ToIP(a uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, a)
	return ip
}
