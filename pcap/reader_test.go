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
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// microsCapture builds a capture in the classic microsecond format.
func microsCapture(t *testing.T, order binary.ByteOrder) []byte {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, binary.Write(&b, order, fileHeader{
		Magic:   magicMicros,
		Major:   2,
		Minor:   4,
		Snaplen: 1500,
		Type:    uint32(LinkEthernet),
	}))
	require.NoError(t, binary.Write(&b, order, recordHeader{Sec: 10, SubSec: 250, Len: 2, OrigLen: 60}))
	b.Write([]byte{0xca, 0xfe})
	return b.Bytes()
}

func TestReaderMicroseconds(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		r, err := NewReader(bytes.NewReader(microsCapture(t, order)))
		require.NoError(t, err)
		assert.Equal(t, LinkEthernet, r.LinkType)

		pkt, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, time.Unix(10, 250000), pkt.Timestamp)
		assert.Equal(t, 60, pkt.Length)
		assert.Equal(t, []byte{0xca, 0xfe}, pkt.Bytes)

		_, err = r.Next()
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := microsCapture(t, binary.LittleEndian)
	bad[0] = 0
	_, err = NewReader(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrBadMagic)

	truncated := microsCapture(t, binary.LittleEndian)
	r, err := NewReader(bytes.NewReader(truncated[:len(truncated)-1]))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
