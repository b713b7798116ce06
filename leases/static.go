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
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidStatic is returned, wrapped, for a malformed static
// allocation file.
var ErrInvalidStatic = errors.New("invalid static allocation")

// LoadStaticFile reads the static allocations in path.
func LoadStaticFile(path string) ([]*Lease, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening static allocation file: %w", err)
	}
	defer f.Close()

	ret, err := ParseStatic(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ret, nil
}

// ParseStatic reads whitespace separated "<mac> <ip>" pairs, usually
// one pair per line. Text after '#' is ignored.
func ParseStatic(r io.Reader) ([]*Lease, error) {
	var (
		ret     []*Lease
		pending string
		pendAt  int
	)
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, field := range strings.Fields(line) {
			if pending == "" {
				pending, pendAt = field, lineNo
				continue
			}
			l, err := parseStaticPair(pending, field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			ret = append(ret, l)
			pending = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != "" {
		return nil, fmt.Errorf("line %d: %w: hardware address %q has no IP address", pendAt, ErrInvalidStatic, pending)
	}
	return ret, nil
}

func parseStaticPair(mac, addr string) (*Lease, error) {
	hw, err := parseMAC(mac)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil || strings.Contains(addr, ":") {
		return nil, fmt.Errorf("%w: invalid IP address %q", ErrInvalidStatic, addr)
	}
	return &Lease{HardwareAddr: hw, IP: ip, Static: true}, nil
}

// parseMAC accepts exactly six colon separated hex octets. Octets may
// omit their leading zero.
func parseMAC(s string) (net.HardwareAddr, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: invalid MAC address %q", ErrInvalidStatic, s)
	}
	hw := make(net.HardwareAddr, 6)
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return nil, fmt.Errorf("%w: invalid MAC address %q", ErrInvalidStatic, s)
		}
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid MAC address %q", ErrInvalidStatic, s)
		}
		hw[i] = byte(b)
	}
	return hw, nil
}
