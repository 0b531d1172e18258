// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/tomtom215/merkato/internal/logging"
)

// IPResolver finds the client address of a request. X-Forwarded-For and
// X-Real-IP are only believed when the peer is a trusted proxy.
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver accepts addresses ("10.0.0.1") and CIDR ranges
// ("10.0.0.0/8"). Unparseable entries are logged and skipped.
func NewIPResolver(trustedProxies []string) *IPResolver {
	res := &IPResolver{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			res.trusted = append(res.trusted, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			res.trusted = append(res.trusted, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		logging.Warn().Str("entry", entry).Msg("Ignoring invalid trusted proxy")
	}
	return res
}

// ClientIP returns the address requests from r are attributed to.
func (res *IPResolver) ClientIP(r *http.Request) string {
	peer := remoteAddr(r.RemoteAddr)
	if !res.isTrusted(peer) {
		return peer
	}

	// Walk X-Forwarded-For from the right, skipping our own proxies. The
	// first untrusted hop is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			a, err := netip.ParseAddr(hop)
			if err != nil {
				break
			}
			if !res.isTrusted(a.Unmap().String()) {
				return a.Unmap().String()
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.Unmap().String()
		}
	}
	return peer
}

func (res *IPResolver) isTrusted(ip string) bool {
	if len(res.trusted) == 0 {
		return false
	}
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range res.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func remoteAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap().String()
	}
	return host
}
