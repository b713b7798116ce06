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

// Package pcap reads and writes pcap capture files. The DHCP server
// uses it to record the datagrams it receives and sends.
package pcap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// LinkType describes the contents of each packet in a pcap.
type LinkType uint32

// Some of the more commonly used LinkTypes.
const (
	LinkEthernet LinkType = 1
	LinkRaw      LinkType = 101
)

func (lt LinkType) String() string {
	switch lt {
	case LinkEthernet:
		return "ethernet"
	case LinkRaw:
		return "raw"
	default:
		return fmt.Sprintf("linktype(%d)", uint32(lt))
	}
}

const (
	magicMicros = 0xa1b2c3d4
	magicNanos  = 0xa1b23c4d
)

// ErrBadMagic is returned by NewReader for input that is not a pcap file.
var ErrBadMagic = errors.New("not a pcap file")

type fileHeader struct {
	Magic uint32
	Major uint16
	Minor uint16
	// Timezone correction and time accuracy, both 0 in practice.
	Ignored uint64
	Snaplen uint32
	Type    uint32
}

type recordHeader struct {
	Sec     uint32
	SubSec  uint32
	Len     uint32
	OrigLen uint32
}

// Reader extracts packets from a pcap file.
type Reader struct {
	LinkType LinkType
	SnapLen  uint32

	r     io.Reader
	order binary.ByteOrder
	tmult int64
}

// Packet is one raw packet and its metadata.
type Packet struct {
	Timestamp time.Time
	// Length is the size of the packet on the wire, which may exceed
	// len(Bytes) if it was truncated to the snap length.
	Length int
	Bytes  []byte
}

// NewReader returns a new Reader that decodes pcap data from r.
func NewReader(r io.Reader) (*Reader, error) {
	ret := &Reader{
		r:     bufio.NewReader(r),
		order: binary.LittleEndian,
	}

	var header fileHeader
	bs := make([]byte, binary.Size(header))
	if _, err := io.ReadFull(ret.r, bs); err != nil {
		return nil, fmt.Errorf("reading pcap header: %w", err)
	}

	// The magic only tells "same" or "swapped" byte order relative to
	// the writer, so decide on the version numbers instead.
	if err := binary.Read(bytes.NewReader(bs), ret.order, &header); err != nil {
		return nil, err
	}
	if header.Major == 0x200 && header.Minor == 0x400 {
		ret.order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(bs), ret.order, &header); err != nil {
			return nil, err
		}
	}
	switch header.Magic {
	case magicMicros:
		ret.tmult = 1000
	case magicNanos:
		ret.tmult = 1
	default:
		return nil, fmt.Errorf("%w: magic %#08x", ErrBadMagic, header.Magic)
	}

	if header.Major != 2 || header.Minor != 4 {
		return nil, fmt.Errorf("unknown pcap version %d.%d", header.Major, header.Minor)
	}

	ret.LinkType = LinkType(header.Type)
	ret.SnapLen = header.Snaplen
	return ret, nil
}

// Next returns the next packet in r, or io.EOF after the last one.
func (r *Reader) Next() (*Packet, error) {
	var hdr recordHeader
	if err := binary.Read(r.r, r.order, &hdr); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated pcap record header: %w", err)
		}
		return nil, err
	}

	bs := make([]byte, hdr.Len)
	if _, err := io.ReadFull(r.r, bs); err != nil {
		return nil, fmt.Errorf("reading pcap record of %d bytes: %w", hdr.Len, err)
	}

	return &Packet{
		Timestamp: time.Unix(int64(hdr.Sec), r.tmult*int64(hdr.SubSec)),
		Length:    int(hdr.OrigLen),
		Bytes:     bs,
	}, nil
}

// ReadAll returns every remaining packet in r.
func (r *Reader) ReadAll() ([]*Packet, error) {
	var ret []*Packet
	for {
		pkt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, pkt)
	}
}
