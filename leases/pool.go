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
	"fmt"
	"net"
	"sort"
	"strings"
)

// span is an inclusive run of free addresses.
type span struct {
	lo, hi uint32
}

// Pool is the set of addresses available for assignment. It is kept as
// sorted, disjoint, non-adjacent spans so that large networks with few
// holes stay small.
type Pool struct {
	spans []span
	n     int
}

func newPool(lo, hi uint32) *Pool {
	p := &Pool{}
	if lo <= hi {
		p.spans = []span{{lo, hi}}
		p.n = int(hi-lo) + 1
	}
	return p
}

// Len returns the number of free addresses.
func (p *Pool) Len() int {
	return p.n
}

// Take removes and returns the lowest free address.
func (p *Pool) Take() (net.IP, bool) {
	if len(p.spans) == 0 {
		return nil, false
	}
	a := p.spans[0].lo
	p.remove(a)
	return uint32ToIP(a), true
}

// Contains reports whether ip is free.
func (p *Pool) Contains(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	_, ok := p.find(ipToUint32(ip4))
	return ok
}

// Remove takes ip out of the pool. It reports whether ip was free.
func (p *Pool) Remove(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	return p.remove(ipToUint32(ip4))
}

// Put returns ip to the pool. It reports false if ip was already free.
func (p *Pool) Put(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	return p.put(ipToUint32(ip4))
}

// Addresses lists every free address in ascending order.
func (p *Pool) Addresses() []net.IP {
	ret := make([]net.IP, 0, p.n)
	for _, s := range p.spans {
		for a := s.lo; ; a++ {
			ret = append(ret, uint32ToIP(a))
			if a == s.hi {
				break
			}
		}
	}
	return ret
}

// Ranges renders the free spans, e.g. "10.0.0.2-10.0.0.9, 10.0.0.11".
func (p *Pool) Ranges() []string {
	ret := make([]string, 0, len(p.spans))
	for _, s := range p.spans {
		if s.lo == s.hi {
			ret = append(ret, uint32ToIP(s.lo).String())
			continue
		}
		ret = append(ret, fmt.Sprintf("%s-%s", uint32ToIP(s.lo), uint32ToIP(s.hi)))
	}
	return ret
}

func (p *Pool) String() string {
	return strings.Join(p.Ranges(), ", ")
}

// find returns the index of the first span ending at or after a, and
// whether that span contains a.
func (p *Pool) find(a uint32) (int, bool) {
	i := sort.Search(len(p.spans), func(i int) bool { return p.spans[i].hi >= a })
	return i, i < len(p.spans) && p.spans[i].lo <= a
}

func (p *Pool) remove(a uint32) bool {
	i, ok := p.find(a)
	if !ok {
		return false
	}
	s := p.spans[i]
	switch {
	case s.lo == s.hi:
		p.spans = append(p.spans[:i], p.spans[i+1:]...)
	case a == s.lo:
		p.spans[i].lo++
	case a == s.hi:
		p.spans[i].hi--
	default:
		p.spans = append(p.spans, span{})
		copy(p.spans[i+2:], p.spans[i+1:])
		p.spans[i] = span{s.lo, a - 1}
		p.spans[i+1] = span{a + 1, s.hi}
	}
	p.n--
	return true
}

func (p *Pool) put(a uint32) bool {
	i, ok := p.find(a)
	if ok {
		return false
	}
	joinPrev := i > 0 && p.spans[i-1].hi+1 == a
	joinNext := i < len(p.spans) && p.spans[i].lo-1 == a
	switch {
	case joinPrev && joinNext:
		p.spans[i-1].hi = p.spans[i].hi
		p.spans = append(p.spans[:i], p.spans[i+1:]...)
	case joinPrev:
		p.spans[i-1].hi = a
	case joinNext:
		p.spans[i].lo = a
	default:
		p.spans = append(p.spans, span{})
		copy(p.spans[i+1:], p.spans[i:])
		p.spans[i] = span{a, a}
	}
	p.n++
	return true
}
