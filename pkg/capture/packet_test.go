package capture

import (
	"bytes"
	"net/netip"
	"testing"
	"time"
)

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []byte
		wantErr bool
	}{
		{name: "upper", payload: "AABB", want: []byte{0xAA, 0xBB}},
		{name: "lower", payload: "45000014", want: []byte{0x45, 0x00, 0x00, 0x14}},
		{name: "empty", payload: "", want: []byte{}},
		{name: "odd length", payload: "ABC", wantErr: true},
		{name: "not hex", payload: "ZZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHex(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeHex(%q) error = nil, want error", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeHex(%q) error = %v", tt.payload, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeHex(%q) = %x, want %x", tt.payload, got, tt.want)
			}
		})
	}
}

func TestNewPacket(t *testing.T) {
	before := time.Now().UTC()
	pkt := NewPacket([]byte{0xAA, 0xBB}, "000868942", netip.MustParseAddr("10.0.0.5"))
	after := time.Now().UTC()

	if pkt.SimID != "000868942" {
		t.Errorf("SimID = %q, want 000868942", pkt.SimID)
	}
	if pkt.SimIP != netip.MustParseAddr("10.0.0.5") {
		t.Errorf("SimIP = %v, want 10.0.0.5", pkt.SimIP)
	}
	if pkt.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pkt.Len())
	}
	if pkt.Timestamp.Before(before) || pkt.Timestamp.After(after) {
		t.Errorf("Timestamp %v not within [%v, %v]", pkt.Timestamp, before, after)
	}
	if pkt.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", pkt.Timestamp.Location())
	}
}
