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
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatic(t *testing.T) {
	in := `# lab hosts
aa:bb:cc:dd:ee:01 192.168.0.10
a:b:c:d:e:f   192.168.0.11 # short octets

de:ad:be:ef:00:01 192.168.0.12 de:ad:be:ef:00:02
192.168.0.13
`
	got, err := ParseStatic(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []struct{ mac, ip string }{
		{"aa:bb:cc:dd:ee:01", "192.168.0.10"},
		{"0a:0b:0c:0d:0e:0f", "192.168.0.11"},
		{"de:ad:be:ef:00:01", "192.168.0.12"},
		{"de:ad:be:ef:00:02", "192.168.0.13"},
	}
	for i, w := range want {
		assert.Equal(t, w.mac, got[i].HardwareAddr.String())
		assert.Equal(t, ip4(w.ip), got[i].IP)
		assert.True(t, got[i].Static)
	}
}

func TestParseStaticErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line string
	}{
		{"five octets", "aa:bb:cc:dd:ee 10.0.0.1", "line 1"},
		{"seven octets", "\naa:bb:cc:dd:ee:ff:00 10.0.0.1", "line 2"},
		{"bad hex", "aa:bb:cc:dd:ee:gg 10.0.0.1", "line 1"},
		{"long octet", "aa:bb:cc:dd:ee:fff 10.0.0.1", "line 1"},
		{"dash separated", "aa-bb-cc-dd-ee-ff 10.0.0.1", "line 1"},
		{"bad ip", "aa:bb:cc:dd:ee:ff 10.0.0.256", "line 1"},
		{"ipv6", "aa:bb:cc:dd:ee:ff ::ffff:10.0.0.1", "line 1"},
		{"dangling mac", "aa:bb:cc:dd:ee:ff 10.0.0.1\n\naa:bb:cc:dd:ee:00", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatic(strings.NewReader(tt.in))
			require.ErrorIs(t, err, ErrInvalidStatic)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestLoadStaticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static.txt")
	require.NoError(t, os.WriteFile(path, []byte("00:11:22:33:44:55 10.0.0.7\n"), 0o600))

	got, err := LoadStaticFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, net.HardwareAddr{0, 0x11, 0x22, 0x33, 0x44, 0x55}, got[0].HardwareAddr)

	_, err = LoadStaticFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
