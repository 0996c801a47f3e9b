package capture

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPcapWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewPcapWriter(&buf)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	packets := []Packet{
		{Data: []byte{0x45, 0x00, 0x00, 0x14}, SimID: "a", SimIP: netip.MustParseAddr("10.0.0.5"), Timestamp: ts},
		{Data: []byte{0xAA, 0xBB}, SimID: "b", Timestamp: ts.Add(time.Second)},
	}
	for _, p := range packets {
		require.NoError(t, w.WritePacket(p))
	}

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeRaw, r.LinkType())

	for i, want := range packets {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err, "packet %d", i)
		assert.Equal(t, want.Data, data)
		assert.True(t, ci.Timestamp.Equal(want.Timestamp), "packet %d timestamp = %v", i, ci.Timestamp)
		assert.Equal(t, len(want.Data), ci.Length)
	}
}
