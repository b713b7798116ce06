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

	"github.com/metal-stack/dhcpd/dhcp4"
)

// reply builds the answer to req for a replying decision. Offers and
// acks carry message type, lease time, server identifier and subnet
// mask in that order, naks only message type and server identifier.
func (s *Server) reply(req *dhcp4.Packet, d Decision) *dhcp4.Packet {
	r := s.Store.Range()
	resp := dhcp4.NewReply(req, d.Action.replyType())
	if d.Action == ActionNak {
		resp.AddIP(dhcp4.OptServerIdentifier, r.Server)
		return resp
	}

	if d.Action == ActionAck {
		resp.ClientAddr = req.ClientAddr
	}
	resp.YourAddr = d.Addr
	resp.ServerAddr = r.Server
	resp.AddUint32(dhcp4.OptLeaseTime, uint32(s.Store.LeaseTime().Seconds()))
	resp.AddIP(dhcp4.OptServerIdentifier, r.Server)
	resp.AddIP(dhcp4.OptSubnetMask, net.IP(r.Mask))
	return resp
}

// destination picks where the reply to req goes. Conn cannot address a
// client by its hardware address alone, so those replies are broadcast
// on the managed network. Naks that do not go through a relay are
// always broadcast.
func (s *Server) destination(req *dhcp4.Packet, a Action) *net.UDPAddr {
	switch tx := dhcp4.ReplyTxType(req); {
	case tx == dhcp4.TxRelayAddr:
		return &net.UDPAddr{IP: req.RelayAddr, Port: s.ServerPort}
	case tx == dhcp4.TxClientAddr && a != ActionNak:
		return &net.UDPAddr{IP: req.ClientAddr, Port: s.ClientPort}
	default:
		return &net.UDPAddr{IP: s.Store.Range().Broadcast, Port: s.ClientPort}
	}
}
