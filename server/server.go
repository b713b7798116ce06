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

// Package server answers DHCPv4 requests for one managed network,
// handing out addresses from a leases.Store.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/metal-stack/dhcpd/dhcp4"
	"github.com/metal-stack/dhcpd/leases"
)

// A Server hands out addresses of a single managed network.
type Server struct {
	Store *leases.Store

	// Log receives logs on the server's operation. If nil, logging is
	// suppressed.
	Log *zap.SugaredLogger

	// ListenAddr is the UDP address to serve DHCP on. Defaults to all
	// interfaces on ServerPort.
	ListenAddr string
	// HTTPAddr serves lease status and metrics if set.
	HTTPAddr string

	// These ports can technically be set for testing, but clients
	// hardcode them, so if you change them in production, nothing will
	// work.
	ServerPort int
	ClientPort int

	// Trace receives a pcap capture of every datagram received and
	// sent. This should be nil unless you are debugging.
	Trace io.Writer

	// Registry collects the server's metrics. A private registry is
	// used if nil.
	Registry *prometheus.Registry

	now     func() time.Time
	metrics *metrics
	tracer  *tracer
}

// transport is the part of dhcp4.Conn the serve loop needs.
type transport interface {
	RecvDatagram(b []byte) ([]byte, *net.UDPAddr, error)
	SendDHCP(pkt *dhcp4.Packet, dst *net.UDPAddr) error
	Close() error
}

func (s *Server) init() {
	if s.Log == nil {
		s.Log = zap.NewNop().Sugar()
	}
	if s.ServerPort == 0 {
		s.ServerPort = dhcp4.ServerPort
	}
	if s.ClientPort == 0 {
		s.ClientPort = dhcp4.ClientPort
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.Registry == nil {
		s.Registry = prometheus.NewRegistry()
	}
	if s.metrics == nil {
		s.metrics = newMetrics(s.Registry, s.Store)
	}
	if s.Trace != nil && s.tracer == nil {
		s.tracer = newTracer(s.Trace, s.Log)
	}
}

// Serve binds the DHCP socket and answers requests until ctx is
// cancelled. It returns nil after cancellation and an error if the
// socket cannot be bound or fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.Store == nil {
		return errors.New("server has no lease store")
	}
	s.init()

	addr := s.ListenAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", s.ServerPort)
	}
	conn, err := dhcp4.NewConn(addr)
	if err != nil {
		return fmt.Errorf("binding DHCP socket on %s: %w", addr, err)
	}

	r := s.Store.Range()
	s.Log.Infow("serving DHCP",
		"listen", conn.LocalAddr(),
		"network", r,
		"server", r.Server,
		"first", r.First,
		"last", r.Last,
		"free", s.Store.Free(),
		"lease-time", s.Store.LeaseTime(),
	)

	if s.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              s.HTTPAddr,
			Handler:           s.httpHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.Log.Errorw("http shutdown failed", "error", err)
			}
		}()
		go func() {
			s.Log.Infow("serving status", "http", s.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Log.Errorw("http server failed", "error", err)
			}
		}()
	}

	return s.serveDHCP(ctx, conn)
}

// serveDHCP handles one datagram at a time until ctx is done.
func (s *Server) serveDHCP(ctx context.Context, conn transport) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, 4096)
	for {
		bs, src, err := conn.RecvDatagram(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.Log.Infow("stopped serving DHCP")
				return nil
			}
			conn.Close()
			return fmt.Errorf("receiving DHCP packet: %w", err)
		}
		s.handle(conn, bs, src)
	}
}

// handle answers a single datagram.
func (s *Server) handle(conn transport, bs []byte, src *net.UDPAddr) {
	now := s.now()
	r := s.Store.Range()
	self := &net.UDPAddr{IP: r.Server, Port: s.ServerPort}
	s.tracer.record(src, self, bs, now)

	for _, l := range s.Store.SweepExpired(now) {
		s.Log.Infow("lease expired", "mac", l.HardwareAddr, "ip", l.IP, "end", l.End)
		s.metrics.expired.Inc()
	}

	pkt, err := dhcp4.Unmarshal(bs)
	if err != nil {
		s.Log.Debugw("ignoring malformed packet", "from", src, "error", err)
		s.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		return
	}
	mt := pkt.MessageType()
	s.metrics.received.WithLabelValues(typeLabel(mt)).Inc()

	d := s.classify(pkt, now)
	if d.Action == ActionNone {
		s.Log.Debugw("not replying", "type", typeLabel(mt), "mac", pkt.HardwareAddr(), "xid", fmt.Sprintf("%08x", pkt.TransactionID), "reason", d.Reason)
		s.metrics.dropped.WithLabelValues(dropNoReply).Inc()
		return
	}

	resp := s.reply(pkt, d)
	dst := s.destination(pkt, d.Action)
	rt := resp.MessageType()
	if err := conn.SendDHCP(resp, dst); err != nil {
		s.Log.Errorw("failed to send reply", "type", typeLabel(rt), "mac", pkt.HardwareAddr(), "to", dst, "error", err)
		s.metrics.dropped.WithLabelValues(dropSendError).Inc()
		return
	}
	s.Log.Infow("replied", "type", typeLabel(rt), "mac", pkt.HardwareAddr(), "ip", d.Addr, "to", dst, "reason", d.Reason)
	s.metrics.replies.WithLabelValues(typeLabel(rt)).Inc()

	if s.tracer != nil {
		if out, err := resp.Marshal(); err == nil {
			s.tracer.record(self, dst, out, now)
		}
	}
}

func typeLabel(mt dhcp4.MessageType) string {
	if mt == 0 {
		return "invalid"
	}
	return mt.String()
}
