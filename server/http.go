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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metal-stack/dhcpd/api"
	"github.com/metal-stack/dhcpd/leases"
)

func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/leases", s.handleLeases)
	mux.HandleFunc("/pool", s.handlePool)
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleLeases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, fmt.Sprintf("method %s not allowed\n", r.Method), http.StatusMethodNotAllowed)
		return
	}
	now := s.now()
	snap := s.Store.Snapshot()
	ret := make([]api.Lease, 0, len(snap.Leases))
	for _, l := range snap.Leases {
		ret = append(ret, leaseView(l, now))
	}
	s.writeJSON(w, r, ret)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, fmt.Sprintf("method %s not allowed\n", r.Method), http.StatusMethodNotAllowed)
		return
	}
	snap := s.Store.Snapshot()
	rg := snap.Range
	ret := api.PoolStatus{
		Network:    rg.String(),
		Server:     rg.Server.String(),
		First:      rg.First.String(),
		Last:       rg.Last.String(),
		Broadcast:  rg.Broadcast.String(),
		Size:       rg.Size(),
		Free:       snap.Free,
		FreeRanges: snap.Pool,
		Leases:     len(snap.Leases),
		Offers:     make([]api.Offer, 0, len(snap.Offers)),
	}
	for _, o := range snap.Offers {
		ret.Offers = append(ret.Offers, api.Offer{
			MAC:           o.HardwareAddr.String(),
			IP:            o.IP.String(),
			TransactionID: fmt.Sprintf("%08x", o.TransactionID),
			Expires:       o.Expires,
		})
	}
	for _, ip := range snap.Declined {
		ret.Declined = append(ret.Declined, ip.String())
	}
	s.writeJSON(w, r, ret)
}

func leaseView(l *leases.Lease, now time.Time) api.Lease {
	ret := api.Lease{
		MAC:    l.HardwareAddr.String(),
		IP:     l.IP.String(),
		Static: l.Static,
	}
	if !l.Static {
		start, end := l.Start, l.End
		ret.Start, ret.End = &start, &end
		ret.RemainingSeconds = int64(l.Remaining(now).Seconds())
	}
	return ret
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warnw("writing http response failed", "url", r.URL, "remote", r.RemoteAddr, "error", err)
	}
}
