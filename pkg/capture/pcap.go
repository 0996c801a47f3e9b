package capture

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultSnapLen is the snapshot length written to the pcap file header.
const DefaultSnapLen = 65535

// PcapWriter writes captured packets to a libpcap stream.
// It is safe for concurrent use.
type PcapWriter struct {
	mu sync.Mutex
	w  *pcapgo.Writer
}

// NewPcapWriter writes the pcap file header to w and returns a writer for
// subsequent packets. Packets are stored with the raw IP link type.
func NewPcapWriter(w io.Writer) (*PcapWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(DefaultSnapLen, layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &PcapWriter{w: pw}, nil
}

// WritePacket appends a packet, using its capture timestamp.
func (p *PcapWriter) WritePacket(pkt Packet) error {
	data := pkt.Data
	if len(data) > DefaultSnapLen {
		data = data[:DefaultSnapLen]
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     pkt.Timestamp,
		CaptureLength: len(data),
		Length:        len(pkt.Data),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.WritePacket(ci, data)
}
