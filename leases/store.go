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

package leases

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// Defaults for Config.
const (
	DefaultLeaseTime    = 2 * time.Minute
	DefaultOfferTimeout = time.Minute
)

var (
	// ErrExhausted is returned by Allocate when no address is free.
	ErrExhausted = errors.New("address pool is exhausted")
	// ErrNotClaimable is returned, wrapped, by Claimable.
	ErrNotClaimable = errors.New("address cannot be bound")
)

// ReleaseResult is the outcome of Store.Release.
type ReleaseResult int

const (
	// NotFound means the hardware address had no lease.
	NotFound ReleaseResult = iota
	// Released means the lease was removed.
	Released
	// Protected means the lease is static and was left untouched.
	Protected
)

func (r ReleaseResult) String() string {
	switch r {
	case NotFound:
		return "not found"
	case Released:
		return "released"
	case Protected:
		return "protected"
	default:
		return "unknown"
	}
}

// Store owns the address pool, the lease table and the pending offers
// of one managed range.
//
// Every address of the range is in exactly one of: the pool, the
// lease table, the pending offers, or the unassignable set (server
// address, excluded and declined addresses).
//
// The DHCP loop is the only writer. The mutex lets status readers run
// on other goroutines.
type Store struct {
	mu sync.Mutex

	r         *Range
	pool      *Pool
	leases    map[string]*Lease
	byIP      map[uint32]*Lease
	offers    map[string]*Offer
	excluded  map[uint32]struct{}
	declined  map[uint32]time.Time
	leaseTime time.Duration
	offerTime time.Duration
}

// Config configures a Store.
type Config struct {
	Range    *Range
	Excluded []net.IP
	Static   []*Lease
	// LeaseTime is the duration of committed leases.
	LeaseTime time.Duration
	// OfferTimeout is how long an offered address is held for the
	// client before it returns to the pool.
	OfferTimeout time.Duration
}

// NewStore builds the pool from the range minus the server address,
// the excluded addresses and the static allocations.
func NewStore(c Config) (*Store, error) {
	if c.Range == nil {
		return nil, fmt.Errorf("%w: no range given", ErrInvalidRange)
	}
	if c.LeaseTime <= 0 {
		return nil, fmt.Errorf("lease time must be positive, got %s", c.LeaseTime)
	}
	if c.OfferTimeout <= 0 {
		return nil, fmt.Errorf("offer timeout must be positive, got %s", c.OfferTimeout)
	}

	s := &Store{
		r:         c.Range,
		pool:      newPool(c.Range.first+1, c.Range.last),
		leases:    make(map[string]*Lease),
		byIP:      make(map[uint32]*Lease),
		offers:    make(map[string]*Offer),
		excluded:  make(map[uint32]struct{}),
		declined:  make(map[uint32]time.Time),
		leaseTime: c.LeaseTime,
		offerTime: c.OfferTimeout,
	}

	for _, ip := range c.Excluded {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%w: excluded address %s is not IPv4", ErrInvalidRange, ip)
		}
		s.excluded[ipToUint32(ip4)] = struct{}{}
		s.pool.Remove(ip4)
	}

	for _, l := range c.Static {
		ip4 := l.IP.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%w: static address %s for %s is not IPv4", ErrInvalidStatic, l.IP, l.HardwareAddr)
		}
		key := hwKey(l.HardwareAddr)
		if _, ok := s.leases[key]; ok {
			return nil, fmt.Errorf("%w: duplicate static allocation for %s", ErrInvalidStatic, l.HardwareAddr)
		}
		a := ipToUint32(ip4)
		if other, ok := s.byIP[a]; ok {
			return nil, fmt.Errorf("%w: %s is statically allocated to both %s and %s", ErrInvalidStatic, ip4, other.HardwareAddr, l.HardwareAddr)
		}
		sl := l.clone()
		sl.IP = ip4
		sl.Static = true
		s.leases[key] = sl
		s.byIP[a] = sl
		s.pool.Remove(ip4)
	}

	return s, nil
}

// Range returns the managed range.
func (s *Store) Range() *Range {
	return s.r
}

// LeaseTime returns the duration of committed leases.
func (s *Store) LeaseTime() time.Duration {
	return s.leaseTime
}

// Allocate picks the address to offer hw. A client that already holds
// a lease or a pending offer gets the same address again. Otherwise the
// lowest free address becomes a pending offer.
func (s *Store) Allocate(hw net.HardwareAddr, xid uint32, now time.Time) (net.IP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hwKey(hw)
	if l, ok := s.leases[key]; ok && !l.Expired(now) {
		return dup(l.IP), nil
	}
	if o, ok := s.offers[key]; ok {
		o.TransactionID = xid
		o.Expires = now.Add(s.offerTime)
		return dup(o.IP), nil
	}

	ip, ok := s.pool.Take()
	if !ok {
		return nil, ErrExhausted
	}
	s.offers[key] = &Offer{
		HardwareAddr:  dupHW(hw),
		IP:            ip,
		TransactionID: xid,
		Expires:       now.Add(s.offerTime),
	}
	return dup(ip), nil
}

// Offered returns the pending offer for hw.
func (s *Store) Offered(hw net.HardwareAddr) (*Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[hwKey(hw)]
	if !ok {
		return nil, false
	}
	return o.clone(), true
}

// Withdraw drops the pending offer for hw and frees its address.
func (s *Store) Withdraw(hw net.HardwareAddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withdraw(hwKey(hw))
}

func (s *Store) withdraw(key string) bool {
	o, ok := s.offers[key]
	if !ok {
		return false
	}
	delete(s.offers, key)
	s.free(o.IP)
	return true
}

// Commit inserts or replaces the lease of hw with a fresh dynamic
// lease on ip. ip leaves the pool and a pending offer of hw is
// consumed. A previous lease address of hw is not returned to the
// pool, callers Release first. Static leases are never replaced.
func (s *Store) Commit(hw net.HardwareAddr, ip net.IP, now time.Time) *Lease {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hwKey(hw)
	if prev, ok := s.leases[key]; ok {
		if prev.Static {
			return prev.clone()
		}
		delete(s.byIP, ipToUint32(prev.IP))
	}
	ip4 := dup(ip.To4())
	if o, ok := s.offers[key]; ok {
		delete(s.offers, key)
		if !o.IP.Equal(ip4) {
			s.free(o.IP)
		}
	}
	s.pool.Remove(ip4)

	l := &Lease{
		HardwareAddr: dupHW(hw),
		IP:           ip4,
		Start:        now,
		End:          now.Add(s.leaseTime),
	}
	s.leases[key] = l
	s.byIP[ipToUint32(ip4)] = l
	return l.clone()
}

// Release removes the lease of hw. Static leases are Protected and
// left alone. The address returns to the pool when explicit is set or
// when it differs from ip, the address the client is about to be bound
// to. An explicit release also drops a pending offer.
func (s *Store) Release(hw net.HardwareAddr, ip net.IP, explicit bool) ReleaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hwKey(hw)
	l, ok := s.leases[key]
	if !ok {
		if explicit {
			s.withdraw(key)
		}
		return NotFound
	}
	if l.Static {
		return Protected
	}

	delete(s.leases, key)
	delete(s.byIP, ipToUint32(l.IP))
	if explicit || !l.IP.Equal(ip) {
		s.free(l.IP)
	}
	if explicit {
		s.withdraw(key)
	}
	return Released
}

// Decline handles a client reporting that ip is already in use. Only
// the address offered or leased to hw can be declined; anything else
// is ignored and false is returned. A declined address is kept out of
// the pool for one lease time.
func (s *Store) Decline(hw net.HardwareAddr, ip net.IP, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	key := hwKey(hw)
	switch {
	case s.offers[key] != nil && s.offers[key].IP.Equal(ip4):
		delete(s.offers, key)
	case s.leases[key] != nil && !s.leases[key].Static && s.leases[key].IP.Equal(ip4):
		delete(s.leases, key)
		delete(s.byIP, ipToUint32(ip4))
	default:
		return false
	}
	s.declined[ipToUint32(ip4)] = now.Add(s.leaseTime)
	s.pool.Remove(ip4)
	return true
}

// SweepExpired returns the addresses of dynamic leases that ended
// strictly before now to the pool, along with timed out offers and
// declined addresses whose quarantine lapsed. The expired leases are
// returned.
func (s *Store) SweepExpired(now time.Time) []*Lease {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Lease
	for key, l := range s.leases {
		if !l.Expired(now) {
			continue
		}
		delete(s.leases, key)
		delete(s.byIP, ipToUint32(l.IP))
		s.free(l.IP)
		expired = append(expired, l.clone())
	}
	for key, o := range s.offers {
		if o.Expires.Before(now) {
			s.withdraw(key)
		}
	}
	for a, until := range s.declined {
		if until.Before(now) {
			delete(s.declined, a)
			s.free(uint32ToIP(a))
		}
	}
	sortLeases(expired)
	return expired
}

// FindByMAC returns the lease of hw.
func (s *Store) FindByMAC(hw net.HardwareAddr) (*Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[hwKey(hw)]
	if !ok {
		return nil, false
	}
	return l.clone(), true
}

// Holder returns the lease currently holding ip.
func (s *Store) Holder(ip net.IP) (*Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ip4 := ip.To4()
	if ip4 == nil {
		return nil, false
	}
	l, ok := s.byIP[ipToUint32(ip4)]
	if !ok {
		return nil, false
	}
	return l.clone(), true
}

// Claimable checks that hw may be bound to ip without breaking the
// pool invariants: ip must be an assignable address of the range that
// is neither leased nor offered to another client, and hw must not be
// statically bound elsewhere.
func (s *Store) Claimable(hw net.HardwareAddr, ip net.IP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ip4 := ip.To4()
	if ip4 == nil || !s.r.Contains(ip4) {
		return fmt.Errorf("%w: %s is outside %s", ErrNotClaimable, ip, s.r)
	}
	if !s.assignable(ip4) {
		return fmt.Errorf("%w: %s is reserved", ErrNotClaimable, ip4)
	}
	key := hwKey(hw)
	if l, ok := s.leases[key]; ok && l.Static && !l.IP.Equal(ip4) {
		return fmt.Errorf("%w: %s is statically bound to %s", ErrNotClaimable, hw, l.IP)
	}
	if l, ok := s.byIP[ipToUint32(ip4)]; ok && hwKey(l.HardwareAddr) != key {
		return fmt.Errorf("%w: %s is leased to %s", ErrNotClaimable, ip4, l.HardwareAddr)
	}
	for k, o := range s.offers {
		if k != key && o.IP.Equal(ip4) {
			return fmt.Errorf("%w: %s is offered to %s", ErrNotClaimable, ip4, o.HardwareAddr)
		}
	}
	return nil
}

// Excluded reports whether ip is kept out of the pool by configuration
// or because a client declined it.
func (s *Store) Excluded(ip net.IP) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	a := ipToUint32(ip4)
	_, excluded := s.excluded[a]
	_, declined := s.declined[a]
	return excluded || declined
}

// Free returns the number of addresses in the pool.
func (s *Store) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Len()
}

// Stats counts the store's contents.
type Stats struct {
	Free     int
	Leases   int
	Static   int
	Offers   int
	Declined int
}

// Stats returns the current counts without copying any entries.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Free:     s.pool.Len(),
		Leases:   len(s.leases),
		Offers:   len(s.offers),
		Declined: len(s.declined),
	}
	for _, l := range s.leases {
		if l.Static {
			st.Static++
		}
	}
	return st
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	Range    *Range
	Free     int
	Pool     []string
	Leases   []*Lease
	Offers   []*Offer
	Declined []net.IP
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Range: s.r,
		Free:  s.pool.Len(),
		Pool:  s.pool.Ranges(),
	}
	for _, l := range s.leases {
		snap.Leases = append(snap.Leases, l.clone())
	}
	sortLeases(snap.Leases)
	for _, o := range s.offers {
		snap.Offers = append(snap.Offers, o.clone())
	}
	sort.Slice(snap.Offers, func(i, j int) bool {
		return ipToUint32(snap.Offers[i].IP) < ipToUint32(snap.Offers[j].IP)
	})
	for a := range s.declined {
		snap.Declined = append(snap.Declined, uint32ToIP(a))
	}
	sort.Slice(snap.Declined, func(i, j int) bool {
		return ipToUint32(snap.Declined[i]) < ipToUint32(snap.Declined[j])
	})
	return snap
}

// Pool returns a copy of the free addresses.
func (s *Store) Pool() []net.IP {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Addresses()
}

// free returns ip to the pool if it is assignable at all.
func (s *Store) free(ip net.IP) {
	if !s.r.Contains(ip) || !s.assignable(ip) {
		return
	}
	s.pool.Put(ip)
}

func (s *Store) assignable(ip net.IP) bool {
	a := ipToUint32(ip)
	if a == s.r.first {
		return false
	}
	if _, ok := s.excluded[a]; ok {
		return false
	}
	if _, ok := s.declined[a]; ok {
		return false
	}
	return true
}

func sortLeases(ls []*Lease) {
	sort.Slice(ls, func(i, j int) bool {
		return ipToUint32(ls[i].IP) < ipToUint32(ls[j].IP)
	})
}

func dup(ip net.IP) net.IP {
	return append(net.IP(nil), ip...)
}

func dupHW(hw net.HardwareAddr) net.HardwareAddr {
	return append(net.HardwareAddr(nil), hw...)
}
