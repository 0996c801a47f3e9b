package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO packet types.
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO packet types.
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
	sioBinaryEvent  byte = '5'
	sioBinaryAck    byte = '6'
)

var (
	errEmptyPacket   = errors.New("empty packet")
	errInvalidEvent  = errors.New("event payload is not a non-empty array")
	errBinaryPayload = errors.New("binary packets are not supported")
)

// openPacket is the Engine.IO handshake data.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// sioPacket is a decoded Socket.IO packet.
type sioPacket struct {
	Type      byte
	Namespace string
	AckID     *int
	Data      json.RawMessage
}

// decodeSIO parses a Socket.IO packet (the data of an Engine.IO message).
func decodeSIO(data []byte) (sioPacket, error) {
	if len(data) == 0 {
		return sioPacket{}, errEmptyPacket
	}

	p := sioPacket{Type: data[0], Namespace: "/"}
	rest := data[1:]

	if p.Type == sioBinaryEvent || p.Type == sioBinaryAck {
		return p, errBinaryPayload
	}

	if len(rest) > 0 && rest[0] == '/' {
		end := 0
		for end < len(rest) && rest[end] != ',' {
			end++
		}
		p.Namespace = string(rest[:end])
		if end < len(rest) {
			end++
		}
		rest = rest[end:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return p, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID = &id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// decodeEvent splits an event payload into its name and arguments.
func decodeEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errInvalidEvent
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, parts[1:], nil
}

// encodeEvent builds the Engine.IO frame for an event on the default namespace.
func encodeEvent(name string, args []any) ([]byte, error) {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, name)
	payload = append(payload, args...)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", name, err)
	}

	frame := make([]byte, 0, len(data)+2)
	frame = append(frame, eioMessage, sioEvent)
	return append(frame, data...), nil
}

// encodeAck builds the Engine.IO frame acknowledging ack id with no arguments.
func encodeAck(id int) []byte {
	frame := []byte{eioMessage, sioAck}
	frame = strconv.AppendInt(frame, int64(id), 10)
	return append(frame, "[]"...)
}

// connectErrorMessage extracts the message of a CONNECT_ERROR packet.
func connectErrorMessage(data json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(data)
}
