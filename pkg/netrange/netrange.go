// Package netrange lists the public address ranges used by the Onomondo
// network, as published at docs.onomondo.com.
package netrange

import (
	"net/netip"
	"slices"
)

var (
	// SimSubnets are the ranges SIM traffic egresses from.
	SimSubnets = mustPrefixes(
		"158.177.93.16/28",
		"185.228.69.0/24",
		"185.228.70.0/24",
		"3.69.121.60/32",
		"3.69.192.150/32",
		"3.64.84.111/32",
	)

	// WebhookSubnets are the ranges webhook requests originate from.
	WebhookSubnets = mustPrefixes(
		"3.65.45.209/32",
		"35.158.167.193/32",
		"52.58.186.11/32",
	)
)

// IsSimAddress reports whether addr belongs to a SIM subnet.
func IsSimAddress(addr netip.Addr) bool {
	return contains(SimSubnets, addr)
}

// IsWebhookAddress reports whether addr belongs to a webhook subnet.
func IsWebhookAddress(addr netip.Addr) bool {
	return contains(WebhookSubnets, addr)
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	addr = addr.Unmap()
	return slices.ContainsFunc(prefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(cidrs))
	for i, c := range cidrs {
		out[i] = netip.MustParsePrefix(c)
	}
	return out
}
