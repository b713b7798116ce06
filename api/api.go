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

// Package api holds the JSON documents served by the status endpoints.
package api

import "time"

// Lease is one entry of the lease table.
type Lease struct {
	MAC string `json:"mac"`
	IP  string `json:"ip"`
	// Static leases come from the static allocation file and never expire.
	Static bool       `json:"static"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	// RemainingSeconds is zero for static and expired leases.
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// Offer is an address offered to a client that did not request it yet.
type Offer struct {
	MAC           string    `json:"mac"`
	IP            string    `json:"ip"`
	TransactionID string    `json:"xid"`
	Expires       time.Time `json:"expires"`
}

// PoolStatus describes the managed network and what is left of it.
type PoolStatus struct {
	Network   string `json:"network"`
	Server    string `json:"server"`
	First     string `json:"first"`
	Last      string `json:"last"`
	Broadcast string `json:"broadcast"`
	Size      int    `json:"size"`

	Free       int      `json:"free"`
	FreeRanges []string `json:"free_ranges"`
	Leases     int      `json:"leases"`
	Offers     []Offer  `json:"offers"`
	Declined   []string `json:"declined,omitempty"`
}
