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
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Writer serializes Packets to an io.Writer in pcap format with
// nanosecond timestamps.
//
// Multiple goroutines may call Put simultaneously.
type Writer struct {
	Writer    io.Writer
	LinkType  LinkType
	SnapLen   uint32
	ByteOrder binary.ByteOrder // defaults to binary.LittleEndian

	mu            sync.Mutex
	headerWritten bool
}

// NewWriter returns a Writer for raw IPv4 packets of any size.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		Writer:   w,
		LinkType: LinkRaw,
		SnapLen:  65535,
	}
}

func (w *Writer) order() binary.ByteOrder {
	if w.ByteOrder != nil {
		return w.ByteOrder
	}
	return binary.LittleEndian
}

func (w *Writer) header() error {
	hdr := fileHeader{
		Magic:   magicNanos,
		Major:   2,
		Minor:   4,
		Snaplen: w.SnapLen,
		Type:    uint32(w.LinkType),
	}
	if err := binary.Write(w.Writer, w.order(), hdr); err != nil {
		return fmt.Errorf("writing pcap header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// Put serializes pkt to w.Writer. Bytes beyond SnapLen are cut off,
// pkt.Length still records the original size. A zero Length is taken
// to mean the packet is complete.
func (w *Writer) Put(pkt *Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.headerWritten {
		if err := w.header(); err != nil {
			return err
		}
	}

	bs := pkt.Bytes
	if w.SnapLen > 0 && uint32(len(bs)) > w.SnapLen {
		bs = bs[:w.SnapLen]
	}
	origLen := pkt.Length
	if origLen == 0 {
		origLen = len(pkt.Bytes)
	}
	hdr := recordHeader{
		Sec:     uint32(pkt.Timestamp.Unix()),
		SubSec:  uint32(pkt.Timestamp.Nanosecond()),
		Len:     uint32(len(bs)),
		OrigLen: uint32(origLen),
	}

	if err := binary.Write(w.Writer, w.order(), hdr); err != nil {
		return fmt.Errorf("writing pcap record header: %w", err)
	}
	if _, err := w.Writer.Write(bs); err != nil {
		return fmt.Errorf("writing pcap record: %w", err)
	}
	return nil
}
