package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/simtap/simtap-go/pkg/capture"
	"github.com/simtap/simtap-go/pkg/netrange"
)

// Packet directions relative to the SIM.
const (
	DirectionUplink   = "UP"
	DirectionDownlink = "DOWN"
	DirectionUnknown  = "?"
)

// PacketPrinter writes one summary line per packet and optionally copies
// each packet to a pcap stream. It is safe for concurrent use.
type PacketPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	pcap  *capture.PcapWriter
	count int
}

// NewPacketPrinter creates a printer writing to w. pcap may be nil.
func NewPacketPrinter(w io.Writer, pcap *capture.PcapWriter) *PacketPrinter {
	return &PacketPrinter{w: w, pcap: pcap}
}

// Print writes pkt.
func (p *PacketPrinter) Print(pkt capture.Packet) error {
	line := FormatPacket(pkt)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return err
	}
	if p.pcap != nil {
		if err := p.pcap.WritePacket(pkt); err != nil {
			return fmt.Errorf("failed to write pcap: %w", err)
		}
	}
	return nil
}

// Count returns the number of packets printed.
func (p *PacketPrinter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// FormatPacket renders a packet as
// "15:04:05.000000 sim-1 UP   UDP 10.0.0.5:5000 -> 8.8.8.8:53 30 bytes".
func FormatPacket(pkt capture.Packet) string {
	s := capture.Summarize(pkt.Data)
	line := fmt.Sprintf("%s %s %-4s %s",
		pkt.Timestamp.UTC().Format("15:04:05.000000"),
		pkt.SimID,
		PacketDirection(pkt, s),
		s)
	if netrange.IsWebhookAddress(s.Src) || netrange.IsWebhookAddress(s.Dst) {
		line += " (webhook)"
	}
	return line
}

// PacketDirection labels a packet as uplink (sent by the SIM) or downlink.
// The SIM address reported at attach time decides; otherwise the public
// SIM egress ranges are consulted.
func PacketDirection(pkt capture.Packet, s capture.Summary) string {
	sim := pkt.SimIP.Unmap()
	src, dst := s.Src.Unmap(), s.Dst.Unmap()
	switch {
	case sim.IsValid() && src == sim:
		return DirectionUplink
	case sim.IsValid() && dst == sim:
		return DirectionDownlink
	case netrange.IsSimAddress(src):
		return DirectionUplink
	case netrange.IsSimAddress(dst):
		return DirectionDownlink
	default:
		return DirectionUnknown
	}
}
