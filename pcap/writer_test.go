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
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadback(t *testing.T) {
	ts := time.Unix(1650000000, 123456789)
	pkts := []*Packet{
		{Timestamp: ts, Length: 42, Bytes: []byte{1, 2, 3, 4}},
		{Timestamp: ts.Add(time.Second), Length: 30, Bytes: []byte{2, 3, 4, 5}},
		{Timestamp: ts.Add(2 * time.Second), Length: 20, Bytes: []byte{3, 4, 5, 6}},
		{Timestamp: ts.Add(3 * time.Second), Length: 10, Bytes: []byte{4, 5, 6, 7}},
	}

	serializations := map[string]bool{}
	for _, order := range []binary.ByteOrder{nil, binary.LittleEndian, binary.BigEndian} {
		var b bytes.Buffer
		w := &Writer{
			Writer:    &b,
			LinkType:  LinkEthernet,
			SnapLen:   65535,
			ByteOrder: order,
		}
		for _, pkt := range pkts {
			require.NoError(t, w.Put(pkt))
		}
		serializations[b.String()] = true

		r, err := NewReader(&b)
		require.NoError(t, err)
		assert.Equal(t, LinkEthernet, r.LinkType)
		assert.Equal(t, uint32(65535), r.SnapLen)

		readBack, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, readBack, len(pkts))
		for i := range pkts {
			assert.True(t, pkts[i].Timestamp.Equal(readBack[i].Timestamp))
			assert.Equal(t, pkts[i].Length, readBack[i].Length)
			assert.Equal(t, pkts[i].Bytes, readBack[i].Bytes)
		}
	}

	assert.Len(t, serializations, 2, "expected one serialization per byte order")
}

func TestWriterSnapLen(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	w.SnapLen = 3

	require.NoError(t, w.Put(&Packet{Timestamp: time.Unix(1, 0), Bytes: []byte{1, 2, 3, 4, 5}}))

	r, err := NewReader(&b)
	require.NoError(t, err)
	assert.Equal(t, LinkRaw, r.LinkType)

	pkt, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, pkt.Bytes)
	assert.Equal(t, 5, pkt.Length)
}
