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
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/metal-stack/dhcpd/dhcp4"
	"github.com/metal-stack/dhcpd/leases"
)

// Action is what the server does in answer to one request.
type Action int

// Actions.
const (
	ActionNone Action = iota
	ActionOffer
	ActionAck
	ActionNak
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionOffer:
		return "offer"
	case ActionAck:
		return "ack"
	case ActionNak:
		return "nak"
	default:
		return "unknown"
	}
}

// replyType maps a replying Action to its DHCP message type.
func (a Action) replyType() dhcp4.MessageType {
	switch a {
	case ActionOffer:
		return dhcp4.MsgOffer
	case ActionAck:
		return dhcp4.MsgAck
	case ActionNak:
		return dhcp4.MsgNak
	default:
		return 0
	}
}

// Decision is the outcome of classifying one request.
type Decision struct {
	Action Action
	// Addr is the address offered or acknowledged.
	Addr net.IP
	// Reason explains the decision in logs.
	Reason string
}

func none(format string, args ...interface{}) Decision {
	return Decision{Action: ActionNone, Reason: fmt.Sprintf(format, args...)}
}

func nak(format string, args ...interface{}) Decision {
	return Decision{Action: ActionNak, Reason: fmt.Sprintf(format, args...)}
}

// classify runs the server side of the RFC 2131 state machine for pkt
// and applies the resulting changes to the store.
func (s *Server) classify(pkt *dhcp4.Packet, now time.Time) Decision {
	if pkt.Op != dhcp4.OpRequest {
		return none("op %d is not BOOTREQUEST", pkt.Op)
	}
	if pkt.HardwareLen == 0 {
		return none("no client hardware address")
	}
	hw := pkt.HardwareAddr()

	switch mt := pkt.MessageType(); mt {
	case dhcp4.MsgDiscover:
		return s.discover(pkt, hw, now)
	case dhcp4.MsgRequest:
		return s.request(pkt, hw, now)
	case dhcp4.MsgRelease:
		res := s.Store.Release(hw, pkt.YourAddr, true)
		return none("release: %s", res)
	case dhcp4.MsgDecline:
		return s.decline(pkt, hw, now)
	case 0:
		return none("missing or invalid message type")
	default:
		return none("%s is not handled", mt)
	}
}

func (s *Server) discover(pkt *dhcp4.Packet, hw net.HardwareAddr, now time.Time) Decision {
	ip, err := s.Store.Allocate(hw, pkt.TransactionID, now)
	if errors.Is(err, leases.ErrExhausted) {
		s.Log.Warnw("cannot offer an address", "mac", hw, "error", err)
		return none("pool exhausted")
	}
	if err != nil {
		return none("allocation failed: %s", err)
	}
	return Decision{Action: ActionOffer, Addr: ip, Reason: "discover"}
}

func (s *Server) request(pkt *dhcp4.Packet, hw net.HardwareAddr, now time.Time) Decision {
	r := s.Store.Range()
	hasServerID := pkt.Options.Has(dhcp4.OptServerIdentifier)
	serverID, _ := pkt.Options.IP(dhcp4.OptServerIdentifier)

	switch {
	case hasServerID && !r.IsServer(serverID):
		s.Store.Withdraw(hw)
		return none("client selected server %s", serverID)

	case !dhcp4.IsUnspecified(pkt.ClientAddr):
		// RENEWING or REBINDING.
		if err := s.Store.Claimable(hw, pkt.ClientAddr); err != nil {
			return nak("renewing: %s", err)
		}
		return s.bind(hw, pkt.ClientAddr, now, "renewing")

	case hasServerID:
		// SELECTING.
		requested, err := pkt.Options.IP(dhcp4.OptRequestedIP)
		if err != nil {
			return none("selecting: no requested address: %s", err)
		}
		if o, ok := s.Store.Offered(hw); ok && o.IP.Equal(requested) {
			return s.bind(hw, requested, now, "selecting")
		}
		if l, ok := s.Store.FindByMAC(hw); ok && l.IP.Equal(requested) {
			return s.bind(hw, requested, now, "selecting")
		}
		return none("selecting: %s was not offered to this client", requested)

	default:
		// INIT-REBOOT.
		requested, err := pkt.Options.IP(dhcp4.OptRequestedIP)
		if err != nil {
			return none("init-reboot: no requested address: %s", err)
		}
		if !r.Contains(requested) {
			return nak("init-reboot: %s is not on %s", requested, r)
		}
		l, ok := s.Store.FindByMAC(hw)
		if !ok {
			return none("init-reboot: no lease on record")
		}
		if !l.IP.Equal(requested) {
			return nak("init-reboot: client holds %s, not %s", l.IP, requested)
		}
		return s.bind(hw, requested, now, "init-reboot")
	}
}

// bind (re)binds hw to ip. A static lease is kept as it is and still
// acknowledged.
func (s *Server) bind(hw net.HardwareAddr, ip net.IP, now time.Time, state string) Decision {
	if s.Store.Release(hw, ip, false) == leases.Protected {
		l, _ := s.Store.FindByMAC(hw)
		return Decision{Action: ActionAck, Addr: l.IP, Reason: state + ": static lease"}
	}
	l := s.Store.Commit(hw, ip, now)
	return Decision{Action: ActionAck, Addr: l.IP, Reason: state}
}

// decline quarantines the address a client found in use. The DECLINE
// must name this server and the address it offered or leased to hw.
func (s *Server) decline(pkt *dhcp4.Packet, hw net.HardwareAddr, now time.Time) Decision {
	serverID, err := pkt.Options.IP(dhcp4.OptServerIdentifier)
	if err != nil {
		return none("decline without server identifier: %s", err)
	}
	if !s.Store.Range().IsServer(serverID) {
		return none("decline addressed to %s", serverID)
	}
	requested, err := pkt.Options.IP(dhcp4.OptRequestedIP)
	if err != nil {
		return none("decline without requested address: %s", err)
	}
	if !s.Store.Decline(hw, requested, now) {
		return none("decline for %s, which was not offered or leased to this client", requested)
	}
	s.Log.Warnw("client declined address", "mac", hw, "ip", requested)
	return none("declined %s", requested)
}
