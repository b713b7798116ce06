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
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/metal-stack/dhcpd/pcap"
)

// tracer appends datagrams to a pcap capture. It gives up after the
// first failure.
type tracer struct {
	w      *pcap.Writer
	log    *zap.SugaredLogger
	broken bool
}

func newTracer(w io.Writer, log *zap.SugaredLogger) *tracer {
	return &tracer{w: pcap.NewWriter(w), log: log}
}

func (t *tracer) record(src, dst *net.UDPAddr, payload []byte, now time.Time) {
	if t == nil || t.broken {
		return
	}
	frame, err := pcap.EncodeUDP(&pcap.Datagram{Src: src, Dst: dst, Payload: payload})
	if err == nil {
		err = t.w.Put(&pcap.Packet{Timestamp: now, Length: len(frame), Bytes: frame})
	}
	if err != nil {
		t.log.Warnw("tracing disabled", "error", err)
		t.broken = true
	}
}
