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
	"errors"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// Well known DHCP ports.
const (
	ServerPort = 67
	ClientPort = 68
)

// TxType describes how a reply should be sent on the wire.
type TxType int

// The various transmission strategies described in RFC 2131. "MUST",
// "MUST NOT", "SHOULD" and "MAY" are as specified in RFC 2119.
const (
	// Packet MUST be broadcast.
	TxBroadcast TxType = iota
	// Packet MUST be unicasted to port 67 of RelayAddr
	TxRelayAddr
	// Packet MUST be unicasted to port 68 of ClientAddr
	TxClientAddr
	// Packet SHOULD be unicasted to port 68 of YourAddr, with the
	// link-layer destination explicitly set to HardwareAddr. You MUST
	// NOT rely on ARP resolution to discover the link-layer
	// destination address.
	//
	// Conn cannot explicitly set the link-layer destination address
	// and broadcasts instead.
	TxHardwareAddr
)

func (t TxType) String() string {
	switch t {
	case TxBroadcast:
		return "broadcast"
	case TxRelayAddr:
		return "relay"
	case TxClientAddr:
		return "client"
	case TxHardwareAddr:
		return "hardware"
	default:
		return "unknown"
	}
}

// ReplyTxType returns how a reply to req has to be delivered.
func ReplyTxType(req *Packet) TxType {
	switch {
	case !IsUnspecified(req.RelayAddr):
		return TxRelayAddr
	case !IsUnspecified(req.ClientAddr):
		return TxClientAddr
	case req.Broadcast():
		return TxBroadcast
	default:
		return TxHardwareAddr
	}
}

// Conn is a DHCP-oriented UDP socket.
//
// Multiple goroutines may invoke methods on a Conn simultaneously.
type Conn struct {
	conn *ipv4.PacketConn
}

// NewConn creates a Conn bound to the given UDP ip:port.
func NewConn(addr string) (*Conn, error) {
	c, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, err
	}
	l := ipv4.NewPacketConn(c)
	if err = l.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		l.Close()
		return nil, err
	}
	return &Conn{conn: l}, nil
}

// Close closes the DHCP socket.
// Any blocked Read or Write operations will be unblocked and return errors.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the address the socket is bound to.
func (c *Conn) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// RecvDatagram reads one datagram into b and returns the filled part
// of b and the sender. Decoding is left to the caller.
func (c *Conn) RecvDatagram(b []byte) ([]byte, *net.UDPAddr, error) {
	n, _, addr, err := c.conn.ReadFrom(b)
	if err != nil {
		return nil, nil, err
	}
	src, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil, nil, errors.New("received datagram from a non-UDP address")
	}
	return b[:n], src, nil
}

// SendDHCP marshals pkt and sends it to dst.
func (c *Conn) SendDHCP(pkt *Packet, dst *net.UDPAddr) error {
	b, err := pkt.Marshal()
	if err != nil {
		return err
	}
	_, err = c.conn.WriteTo(b, nil, dst)
	return err
}

// SetReadDeadline sets the deadline for future Read calls.  If the
// deadline is reached, Read will fail with a timeout (see net.Error)
// instead of blocking.  A zero value for t means Read will not time
// out.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
