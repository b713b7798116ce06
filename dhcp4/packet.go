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

// Package dhcp4 implements the DHCPv4 wire format and a UDP transport
// for a DHCP server.
package dhcp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrMalformedPacket is returned, wrapped, for any buffer that is not
// a well-formed DHCP message.
var ErrMalformedPacket = errors.New("malformed DHCP packet")

// OpCode is the BOOTP message op code.
type OpCode uint8

// BOOTP op codes.
const (
	OpRequest OpCode = 1
	OpReply   OpCode = 2
)

// MessageType is the DHCP message type carried in option 53.
type MessageType uint8

// DHCP message types, RFC 2132 section 9.6.
const (
	MsgDiscover MessageType = 1
	MsgOffer    MessageType = 2
	MsgRequest  MessageType = 3
	MsgDecline  MessageType = 4
	MsgAck      MessageType = 5
	MsgNak      MessageType = 6
	MsgRelease  MessageType = 7
	MsgInform   MessageType = 8
)

func (mt MessageType) String() string {
	switch mt {
	case MsgDiscover:
		return "DHCPDISCOVER"
	case MsgOffer:
		return "DHCPOFFER"
	case MsgRequest:
		return "DHCPREQUEST"
	case MsgDecline:
		return "DHCPDECLINE"
	case MsgAck:
		return "DHCPACK"
	case MsgNak:
		return "DHCPNAK"
	case MsgRelease:
		return "DHCPRELEASE"
	case MsgInform:
		return "DHCPINFORM"
	default:
		return fmt.Sprintf("<unknown DHCP message type %d>", mt)
	}
}

// Wire layout offsets.
const (
	headerLen    = 236
	cookieLen    = 4
	minPacketLen = headerLen + cookieLen
	// BOOTP relays drop anything shorter, RFC 1542 section 2.1.
	minMarshalLen = 300

	chaddrLen = 16
	snameLen  = 64
	fileLen   = 128

	flagBroadcast = 1 << 15
)

var magicCookie = [cookieLen]byte{99, 130, 83, 99}

// Packet represents a DHCP message. Every fixed header field is kept so
// that a decoded packet re-encodes to the same header.
type Packet struct {
	Op            OpCode
	HardwareType  uint8
	HardwareLen   uint8
	Hops          uint8
	TransactionID uint32
	Secs          uint16
	Flags         uint16

	ClientAddr net.IP // ciaddr
	YourAddr   net.IP // yiaddr
	ServerAddr net.IP // siaddr
	RelayAddr  net.IP // giaddr

	ClientHWAddr [chaddrLen]byte
	ServerName   [snameLen]byte
	BootFile     [fileLen]byte

	Options Options
}

// Unmarshal parses a DHCP message and returns a Packet. Every read is
// bounds checked, untrusted input never extends past bs.
func Unmarshal(bs []byte) (*Packet, error) {
	if len(bs) < minPacketLen {
		return nil, fmt.Errorf("%w: packet is %d bytes, need at least %d", ErrMalformedPacket, len(bs), minPacketLen)
	}
	if !bytes.Equal(bs[headerLen:minPacketLen], magicCookie[:]) {
		return nil, fmt.Errorf("%w: packet is missing the DHCP magic cookie", ErrMalformedPacket)
	}

	ret := &Packet{
		Op:            OpCode(bs[0]),
		HardwareType:  bs[1],
		HardwareLen:   bs[2],
		Hops:          bs[3],
		TransactionID: binary.BigEndian.Uint32(bs[4:8]),
		Secs:          binary.BigEndian.Uint16(bs[8:10]),
		Flags:         binary.BigEndian.Uint16(bs[10:12]),
		ClientAddr:    ipAt(bs, 12),
		YourAddr:      ipAt(bs, 16),
		ServerAddr:    ipAt(bs, 20),
		RelayAddr:     ipAt(bs, 24),
	}
	if ret.HardwareLen > chaddrLen {
		return nil, fmt.Errorf("%w: hardware address length %d exceeds %d bytes", ErrMalformedPacket, ret.HardwareLen, chaddrLen)
	}
	copy(ret.ClientHWAddr[:], bs[28:44])
	copy(ret.ServerName[:], bs[44:108])
	copy(ret.BootFile[:], bs[108:236])

	if err := ret.Options.Unmarshal(bs[minPacketLen:]); err != nil {
		return nil, err
	}

	return ret, nil
}

// Marshal returns the wire encoding of p, zero padded to the BOOTP
// minimum message size.
func (p *Packet) Marshal() ([]byte, error) {
	opts, err := p.Options.Marshal()
	if err != nil {
		return nil, err
	}

	n := minPacketLen + len(opts)
	if n < minMarshalLen {
		n = minMarshalLen
	}
	ret := make([]byte, n)

	ret[0] = byte(p.Op)
	ret[1] = p.HardwareType
	ret[2] = p.HardwareLen
	ret[3] = p.Hops
	binary.BigEndian.PutUint32(ret[4:8], p.TransactionID)
	binary.BigEndian.PutUint16(ret[8:10], p.Secs)
	binary.BigEndian.PutUint16(ret[10:12], p.Flags)
	for off, ip := range map[int]net.IP{
		12: p.ClientAddr,
		16: p.YourAddr,
		20: p.ServerAddr,
		24: p.RelayAddr,
	} {
		if err := putIP(ret[off:off+4], ip); err != nil {
			return nil, err
		}
	}
	copy(ret[28:44], p.ClientHWAddr[:])
	copy(ret[44:108], p.ServerName[:])
	copy(ret[108:236], p.BootFile[:])
	copy(ret[headerLen:minPacketLen], magicCookie[:])
	copy(ret[minPacketLen:], opts)

	return ret, nil
}

// MessageType returns the DHCP message type of p, or 0 if option 53
// is missing or not a known type.
func (p *Packet) MessageType() MessageType {
	b, err := p.Options.Byte(OptMessageType)
	if err != nil {
		return 0
	}
	mt := MessageType(b)
	if mt < MsgDiscover || mt > MsgInform {
		return 0
	}
	return mt
}

// Broadcast reports whether the client asked for broadcast replies.
func (p *Packet) Broadcast() bool {
	return p.Flags&flagBroadcast != 0
}

// HardwareAddr returns the first HardwareLen bytes of the client
// hardware address field.
func (p *Packet) HardwareAddr() net.HardwareAddr {
	ret := make(net.HardwareAddr, p.HardwareLen)
	copy(ret, p.ClientHWAddr[:p.HardwareLen])
	return ret
}

// SetHardwareAddr sets the client hardware address and its length.
func (p *Packet) SetHardwareAddr(mac net.HardwareAddr) {
	p.ClientHWAddr = [chaddrLen]byte{}
	n := copy(p.ClientHWAddr[:], mac)
	p.HardwareLen = uint8(n)
}

// NewReply returns a BOOTREPLY of type mt answering req. It echoes the
// fields RFC 2131 table 3 copies from the request and carries the
// message type as its first option.
func NewReply(req *Packet, mt MessageType) *Packet {
	return &Packet{
		Op:            OpReply,
		HardwareType:  req.HardwareType,
		HardwareLen:   req.HardwareLen,
		TransactionID: req.TransactionID,
		Flags:         req.Flags,
		RelayAddr:     req.RelayAddr,
		ClientHWAddr:  req.ClientHWAddr,
		Options: Options{
			{Code: OptMessageType, Value: []byte{byte(mt)}},
		},
	}
}

// AddIP appends an IPv4-valued option.
func (p *Packet) AddIP(n Option, ip net.IP) {
	v := make([]byte, 4)
	copy(v, ip.To4())
	p.Options.Add(n, v)
}

// AddUint32 appends a big-endian uint32 option.
func (p *Packet) AddUint32(n Option, v uint32) {
	p.Options.Add(n, uint32Bytes(v))
}

// DebugString prints the contents of a DHCP packet for human consumption.
func (p *Packet) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, `Packet{
  Op: %d
  Type: %s
  TransactionID: %08x
  Flags: %04x
  HardwareAddr: %s
  ClientAddr: %s
  YourAddr: %s
  ServerAddr: %s
  RelayAddr: %s
  Options:
`, p.Op, p.MessageType(), p.TransactionID, p.Flags, p.HardwareAddr(), p.ClientAddr, p.YourAddr, p.ServerAddr, p.RelayAddr)
	for _, opt := range p.Options {
		fmt.Fprintf(&b, "    %d: %x\n", opt.Code, opt.Value)
	}
	b.WriteString("}\n")
	return b.String()
}

func ipAt(bs []byte, off int) net.IP {
	return net.IPv4(bs[off], bs[off+1], bs[off+2], bs[off+3]).To4()
}

func putIP(dst []byte, ip net.IP) error {
	if ip == nil {
		return nil
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return fmt.Errorf("%s is not an IPv4 address", ip)
	}
	copy(dst, ip4)
	return nil
}

// IsUnspecified reports whether ip is nil or 0.0.0.0.
func IsUnspecified(ip net.IP) bool {
	return ip == nil || ip.IsUnspecified()
}
