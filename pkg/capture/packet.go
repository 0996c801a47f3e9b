package capture

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"time"
)

// Packet is a single captured packet for one SIM.
type Packet struct {
	// Data is the raw packet bytes.
	Data []byte

	// SimID identifies the SIM the packet was captured for.
	SimID string

	// SimIP is the address assigned to the SIM when the subscription attached.
	// It is the zero Addr if the remote side never reported one.
	SimIP netip.Addr

	// Timestamp is when the packet was received locally (UTC).
	Timestamp time.Time
}

// NewPacket creates a packet stamped with the current time.
func NewPacket(data []byte, simID string, simIP netip.Addr) Packet {
	return Packet{
		Data:      data,
		SimID:     simID,
		SimIP:     simIP,
		Timestamp: time.Now().UTC(),
	}
}

// DecodeHex decodes a packet payload as sent by the monitor service.
// Both upper and lower case hex digits are accepted.
func DecodeHex(payload string) ([]byte, error) {
	data, err := hex.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode packet payload: %w", err)
	}
	return data, nil
}

// Len returns the packet length in bytes.
func (p Packet) Len() int {
	return len(p.Data)
}
