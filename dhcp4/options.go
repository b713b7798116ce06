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

package dhcp4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Option is a DHCP option code.
type Option uint8

// Options that the server reads or writes. Others are carried
// through Options untouched.
const (
	OptPad              Option = 0
	OptSubnetMask       Option = 1
	OptRequestedIP      Option = 50
	OptLeaseTime        Option = 51
	OptMessageType      Option = 53
	OptServerIdentifier Option = 54
	OptEnd              Option = 255
)

// OptionValue is one (code, value) entry of an options region.
type OptionValue struct {
	Code  Option
	Value []byte
}

// Options stores DHCP options in the order they appear on the wire.
//
// RFC 2131 permits an option to appear more than once. Lookups return
// the first occurrence.
type Options []OptionValue

// Unmarshal parses DHCP options from bs and appends them to o. bs
// must not include the magic cookie.
func (o *Options) Unmarshal(bs []byte) error {
	for len(bs) > 0 {
		opt := Option(bs[0])
		switch opt {
		case OptPad:
			bs = bs[1:]
		case OptEnd:
			return nil
		default:
			if len(bs) < 2 {
				return fmt.Errorf("%w: option %d has no length byte", ErrMalformedPacket, opt)
			}
			l := int(bs[1])
			if len(bs[2:]) < l {
				return fmt.Errorf("%w: option %d claims to have %d bytes of payload, but only has %d bytes", ErrMalformedPacket, opt, l, len(bs[2:]))
			}
			*o = append(*o, OptionValue{Code: opt, Value: bs[2 : 2+l : 2+l]})
			bs = bs[2+l:]
		}
	}

	return fmt.Errorf("%w: options are not terminated by a 255 byte", ErrMalformedPacket)
}

// Marshal returns the wire encoding of o, including the end marker.
func (o Options) Marshal() ([]byte, error) {
	var ret bytes.Buffer
	if err := o.MarshalTo(&ret); err != nil {
		return nil, err
	}
	return ret.Bytes(), nil
}

// MarshalTo serializes o into w, followed by the end marker.
func (o Options) MarshalTo(w io.Writer) error {
	for _, opt := range o {
		if opt.Code == OptPad || opt.Code == OptEnd {
			return fmt.Errorf("invalid DHCP option number %d", opt.Code)
		}
		if len(opt.Value) > 255 {
			return fmt.Errorf("DHCP option %d has value >255 bytes", opt.Code)
		}
		if _, err := w.Write([]byte{byte(opt.Code), byte(len(opt.Value))}); err != nil {
			return err
		}
		if _, err := w.Write(opt.Value); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{byte(OptEnd)})
	return err
}

// Add appends an option. Existing occurrences of the same code are
// kept and still shadow the new one on lookup.
func (o *Options) Add(n Option, value []byte) {
	*o = append(*o, OptionValue{Code: n, Value: value})
}

// Get returns the value of the first occurrence of option n.
func (o Options) Get(n Option) ([]byte, bool) {
	for _, opt := range o {
		if opt.Code == n {
			return opt.Value, true
		}
	}
	return nil, false
}

// Has reports whether option n is present at all, whatever its value.
func (o Options) Has(n Option) bool {
	_, ok := o.Get(n)
	return ok
}

// Byte returns the value of single-byte option n.
func (o Options) Byte(n Option) (byte, error) {
	v, ok := o.Get(n)
	if !ok {
		return 0, fmt.Errorf("option %d not found", n)
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("option %d has length %d, want 1", n, len(v))
	}
	return v[0], nil
}

// Uint32 returns the value of option n as a big-endian uint32.
func (o Options) Uint32(n Option) (uint32, error) {
	v, ok := o.Get(n)
	if !ok {
		return 0, fmt.Errorf("option %d not found", n)
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("option %d has length %d, want 4", n, len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

// IP returns the value of option n as an IPv4 address.
func (o Options) IP(n Option) (net.IP, error) {
	v, ok := o.Get(n)
	if !ok {
		return nil, fmt.Errorf("option %d not found", n)
	}
	if len(v) != 4 {
		return nil, fmt.Errorf("option %d has length %d, want 4", n, len(v))
	}
	return net.IPv4(v[0], v[1], v[2], v[3]).To4(), nil
}

func uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
