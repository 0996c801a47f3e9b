package capture

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Summary is a decoded view of a packet's network and transport headers.
type Summary struct {
	Src      netip.Addr
	Dst      netip.Addr
	Protocol string
	SrcPort  uint16
	DstPort  uint16
	Length   int

	// Flags holds TCP flags (e.g. "SYN,ACK"), empty for other protocols.
	Flags string
}

// Summarize decodes the IP header and, where present, the transport header.
// Packets that are not IPv4 or IPv6 yield a summary with Protocol "unknown".
func Summarize(data []byte) Summary {
	s := Summary{Protocol: "unknown", Length: len(data)}
	if len(data) == 0 {
		return s
	}

	var first gopacket.LayerType
	switch data[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return s
	}

	pkt := gopacket.NewPacket(data, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		s.Src, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		s.Dst, _ = netip.AddrFromSlice(ip.DstIP.To4())
		s.Protocol = ip.Protocol.String()
	case *layers.IPv6:
		s.Src, _ = netip.AddrFromSlice(ip.SrcIP)
		s.Dst, _ = netip.AddrFromSlice(ip.DstIP)
		s.Protocol = ip.NextHeader.String()
	default:
		return s
	}

	switch t := pkt.TransportLayer().(type) {
	case *layers.TCP:
		s.Protocol = "TCP"
		s.SrcPort = uint16(t.SrcPort)
		s.DstPort = uint16(t.DstPort)
		s.Flags = tcpFlags(t)
	case *layers.UDP:
		s.Protocol = "UDP"
		s.SrcPort = uint16(t.SrcPort)
		s.DstPort = uint16(t.DstPort)
	}

	if pkt.Layer(layers.LayerTypeICMPv4) != nil {
		s.Protocol = "ICMPv4"
	} else if pkt.Layer(layers.LayerTypeICMPv6) != nil {
		s.Protocol = "ICMPv6"
	}

	return s
}

// String formats the summary on a single line.
func (s Summary) String() string {
	if !s.Src.IsValid() {
		return fmt.Sprintf("%s %d bytes", s.Protocol, s.Length)
	}

	var b strings.Builder
	if s.SrcPort != 0 || s.DstPort != 0 {
		fmt.Fprintf(&b, "%s %s -> %s",
			s.Protocol,
			netip.AddrPortFrom(s.Src, s.SrcPort),
			netip.AddrPortFrom(s.Dst, s.DstPort))
	} else {
		fmt.Fprintf(&b, "%s %s -> %s", s.Protocol, s.Src, s.Dst)
	}
	if s.Flags != "" {
		fmt.Fprintf(&b, " [%s]", s.Flags)
	}
	fmt.Fprintf(&b, " %d bytes", s.Length)
	return b.String()
}

func tcpFlags(t *layers.TCP) string {
	var flags []string
	if t.SYN {
		flags = append(flags, "SYN")
	}
	if t.ACK {
		flags = append(flags, "ACK")
	}
	if t.FIN {
		flags = append(flags, "FIN")
	}
	if t.RST {
		flags = append(flags, "RST")
	}
	if t.PSH {
		flags = append(flags, "PSH")
	}
	return strings.Join(flags, ",")
}
