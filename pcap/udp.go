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

package pcap

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Datagram is a UDP payload with its endpoints.
type Datagram struct {
	Src     *net.UDPAddr
	Dst     *net.UDPAddr
	Payload []byte
}

// EncodeUDP frames d as an IPv4/UDP packet with valid lengths and
// checksums, suitable for a LinkRaw capture.
func EncodeUDP(d *Datagram) ([]byte, error) {
	src, dst := d.Src.IP.To4(), d.Dst.IP.To4()
	if src == nil || dst == nil {
		return nil, fmt.Errorf("cannot frame %s -> %s as IPv4", d.Src, d.Dst)
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    dst,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(d.Src.Port),
		DstPort: layers.UDPPort(d.Dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(d.Payload)); err != nil {
		return nil, fmt.Errorf("serializing datagram: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeUDP is the inverse of EncodeUDP.
func DecodeUDP(frame []byte) (*Datagram, error) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeIPv4, gopacket.Default)
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		if el := pkt.ErrorLayer(); el != nil {
			return nil, el.Error()
		}
		return nil, errors.New("not an IPv4 packet")
	}
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return nil, fmt.Errorf("IPv4 packet carries %s, not UDP", ip.Protocol)
	}
	return &Datagram{
		Src:     &net.UDPAddr{IP: ip.SrcIP, Port: int(udp.SrcPort)},
		Dst:     &net.UDPAddr{IP: ip.DstIP, Port: int(udp.DstPort)},
		Payload: udp.Payload,
	}, nil
}
