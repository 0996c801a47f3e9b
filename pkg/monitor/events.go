package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Outbound events.
const (
	EventAuthenticate       = "authenticate"
	EventSubscribePackets   = "subscribe:packets"
	EventUnsubscribePackets = "unsubscribe:packets"
)

// Inbound events.
const (
	EventAuthenticated     = "authenticated"
	EventSubscribedPackets = "subscribed:packets"
	EventSubscribeError    = "subscribe-error"
	EventPackets           = "packets"
)

var errMissingPayload = errors.New("missing event payload")

// subscribedPayload is the payload of subscribed:packets.
type subscribedPayload struct {
	SimID string `json:"simId"`
	IP    string `json:"ip"`
}

// packetsPayload is the payload of packets.
type packetsPayload struct {
	SimID  string `json:"simId"`
	Packet string `json:"packet"`
}

func knownEvent(name string) bool {
	switch name {
	case EventAuthenticated, EventSubscribedPackets, EventSubscribeError, EventPackets:
		return true
	}
	return false
}

// decodeArg decodes the first event argument into T.
func decodeArg[T any](args []json.RawMessage) (T, error) {
	var v T
	if len(args) == 0 {
		return v, errMissingPayload
	}
	if err := json.Unmarshal(args[0], &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// simIDFromError extracts the SIM id from a subscribe-error message such as
// "SIM not found method=subscribe:packet simId=xxx".
func simIDFromError(msg string) (string, bool) {
	_, rest, ok := strings.Cut(msg, "simId=")
	if !ok {
		return "", false
	}
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

// formatArgs renders event arguments for diagnostics.
func formatArgs(args []json.RawMessage) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%d args", len(args))
	}
	return string(data)
}
