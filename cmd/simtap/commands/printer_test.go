package commands

import (
	"bytes"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtap/simtap-go/pkg/capture"
)

func TestPacketDirection(t *testing.T) {
	simIP := netip.MustParseAddr("10.0.0.5")

	tests := []struct {
		name  string
		src   string
		dst   string
		simIP netip.Addr
		want  string
	}{
		{"from sim", "10.0.0.5", "8.8.8.8", simIP, DirectionUplink},
		{"to sim", "8.8.8.8", "10.0.0.5", simIP, DirectionDownlink},
		{"egress range source", "185.228.69.10", "8.8.8.8", netip.Addr{}, DirectionUplink},
		{"egress range destination", "8.8.8.8", "185.228.70.1", netip.Addr{}, DirectionDownlink},
		{"unrelated", "1.1.1.1", "8.8.8.8", simIP, DirectionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := capture.Packet{Data: udpPacket(t, tt.src, tt.dst, 1000, 2000), SimID: "sim-1", SimIP: tt.simIP}
			got := PacketDirection(pkt, capture.Summarize(pkt.Data))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPacket(t *testing.T) {
	pkt := capture.Packet{
		Data:      udpPacket(t, "10.0.0.5", "8.8.8.8", 5000, 53),
		SimID:     "sim-1",
		SimIP:     netip.MustParseAddr("10.0.0.5"),
		Timestamp: time.Date(2026, 3, 1, 12, 30, 15, 250000000, time.UTC),
	}

	line := FormatPacket(pkt)
	assert.True(t, strings.HasPrefix(line, "12:30:15.250000 sim-1 UP"), line)
	assert.Contains(t, line, "UDP 10.0.0.5:5000 -> 8.8.8.8:53 36 bytes")
	assert.NotContains(t, line, "webhook")
}

func TestFormatPacketWebhook(t *testing.T) {
	pkt := capture.Packet{
		Data:  udpPacket(t, "3.65.45.209", "10.0.0.5", 443, 5000),
		SimID: "sim-1",
		SimIP: netip.MustParseAddr("10.0.0.5"),
	}
	assert.Contains(t, FormatPacket(pkt), "(webhook)")
}

func TestFormatPacketUnknownPayload(t *testing.T) {
	pkt := capture.Packet{Data: []byte{0x00, 0x01}, SimID: "sim-1"}
	line := FormatPacket(pkt)
	assert.Contains(t, line, "sim-1 ?")
	assert.Contains(t, line, "unknown 2 bytes")
}

func TestPacketPrinterWritesPcap(t *testing.T) {
	var out, pcapBuf bytes.Buffer
	pw, err := capture.NewPcapWriter(&pcapBuf)
	require.NoError(t, err)
	headerLen := pcapBuf.Len()

	p := NewPacketPrinter(&out, pw)
	data := udpPacket(t, "10.0.0.5", "8.8.8.8", 5000, 53)
	require.NoError(t, p.Print(capture.NewPacket(data, "sim-1", netip.Addr{})))

	assert.Equal(t, 1, p.Count())
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	// 16 byte record header plus the packet.
	assert.Equal(t, headerLen+16+len(data), pcapBuf.Len())
}
