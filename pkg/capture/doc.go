// Package capture defines the captured packet value delivered to subscribers
// and a few helpers for presenting captured traffic.
//
// A Packet is immutable once constructed. Its payload is the raw IP datagram
// as relayed by the monitor service; the monitor itself never interprets it.
// Summarize decodes the headers for display and PcapWriter stores packets in
// a libpcap file using the raw IP link type, so captures open directly in
// Wireshark or tcpdump.
package capture
