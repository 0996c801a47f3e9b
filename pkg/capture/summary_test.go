package capture

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func TestSummarizeUDP(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 0, 0, 5},
		DstIP:    net.IP{8, 8, 8, 8},
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	data := serialize(t, ip, udp, gopacket.Payload([]byte("hi")))
	s := Summarize(data)

	assert.Equal(t, "UDP", s.Protocol)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), s.Src)
	assert.Equal(t, netip.MustParseAddr("8.8.8.8"), s.Dst)
	assert.Equal(t, uint16(5000), s.SrcPort)
	assert.Equal(t, uint16(53), s.DstPort)
	assert.Equal(t, 30, s.Length)
	assert.Equal(t, "UDP 10.0.0.5:5000 -> 8.8.8.8:53 30 bytes", s.String())
}

func TestSummarizeTCPFlags(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{10, 0, 0, 5},
		DstIP:    net.IP{1, 1, 1, 1},
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true, ACK: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	s := Summarize(serialize(t, ip, tcp))

	assert.Equal(t, "TCP", s.Protocol)
	assert.Equal(t, "SYN,ACK", s.Flags)
	assert.Contains(t, s.String(), "[SYN,ACK]")
}

func TestSummarizeNotIP(t *testing.T) {
	s := Summarize([]byte{0xAA, 0xBB})
	assert.Equal(t, "unknown", s.Protocol)
	assert.False(t, s.Src.IsValid())
	assert.Equal(t, "unknown 2 bytes", s.String())

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Length)
}
