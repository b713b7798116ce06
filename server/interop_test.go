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
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip sends a client message built by an independent DHCP
// implementation and parses the single reply with it.
func (ts *testServer) roundTrip(t *testing.T, msg *dhcpv4.DHCPv4) *dhcpv4.DHCPv4 {
	t.Helper()
	ts.handle(ts.conn, msg.ToBytes(), client)
	out := ts.conn.take()
	require.Len(t, out, 1)
	raw, err := out[0].pkt.Marshal()
	require.NoError(t, err)
	reply, err := dhcpv4.FromBytes(raw)
	require.NoError(t, err)
	return reply
}

func TestInteropClientFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	server := net.IPv4(192, 168, 0, 1)

	discover, err := dhcpv4.NewDiscovery(hwA)
	require.NoError(t, err)
	offer := ts.roundTrip(t, discover)

	assert.Equal(t, dhcpv4.OpcodeBootReply, offer.OpCode)
	assert.Equal(t, dhcpv4.MessageTypeOffer, offer.MessageType())
	assert.Equal(t, discover.TransactionID, offer.TransactionID)
	assert.Equal(t, hwA, offer.ClientHWAddr)
	assert.True(t, offer.YourIPAddr.Equal(net.IPv4(192, 168, 0, 2)))
	assert.True(t, offer.ServerIdentifier().Equal(server))
	assert.Equal(t, 2*time.Minute, offer.IPAddressLeaseTime(0))
	assert.Equal(t, net.CIDRMask(24, 32), offer.SubnetMask())

	request, err := dhcpv4.NewRequestFromOffer(offer)
	require.NoError(t, err)
	ack := ts.roundTrip(t, request)

	assert.Equal(t, dhcpv4.MessageTypeAck, ack.MessageType())
	assert.Equal(t, request.TransactionID, ack.TransactionID)
	assert.True(t, ack.YourIPAddr.Equal(offer.YourIPAddr))
	l, ok := ts.Store.FindByMAC(hwA)
	require.True(t, ok)
	assert.True(t, l.IP.Equal(offer.YourIPAddr))

	// Renew from the bound address.
	renew, err := dhcpv4.New(
		dhcpv4.WithHwAddr(hwA),
		dhcpv4.WithMessageType(dhcpv4.MessageTypeRequest),
		dhcpv4.WithClientIP(ack.YourIPAddr),
	)
	require.NoError(t, err)
	renewed := ts.roundTrip(t, renew)
	assert.Equal(t, dhcpv4.MessageTypeAck, renewed.MessageType())
	assert.True(t, renewed.ClientIPAddr.Equal(ack.YourIPAddr))

	release, err := dhcpv4.NewReleaseFromACK(ack)
	require.NoError(t, err)
	ts.handle(ts.conn, release.ToBytes(), client)
	assert.Empty(t, ts.conn.take())
	_, ok = ts.Store.FindByMAC(hwA)
	assert.False(t, ok)
}

func TestInteropRelayedDiscover(t *testing.T) {
	ts := newTestServer(t, nil)

	discover, err := dhcpv4.NewDiscovery(hwB, dhcpv4.WithRelay(net.IPv4(10, 1, 0, 1)))
	require.NoError(t, err)
	ts.handle(ts.conn, discover.ToBytes(), client)

	out := ts.conn.take()
	require.Len(t, out, 1)
	assert.Equal(t, &net.UDPAddr{IP: ip4("10.1.0.1"), Port: 67}, out[0].dst)
	assert.Equal(t, ip4("10.1.0.1"), out[0].pkt.RelayAddr)
}
