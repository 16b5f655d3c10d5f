package domain

import (
	"net"
	"net/url"
	"strings"
)

// ConnectedSites maps an origin to the single address it is allowed to see.
type ConnectedSites map[string]string

// Account returns the address authorized for the origin, if any.
func (s ConnectedSites) Account(origin string) (string, bool) {
	addr, ok := s[NormalizeOrigin(origin)]
	return addr, ok && addr != ""
}

// Connect authorizes the origin to see the given address.
func (s ConnectedSites) Connect(origin, address string) {
	s[NormalizeOrigin(origin)] = address
}

// Repoint returns a copy of the table with every site pointing to address.
func (s ConnectedSites) Repoint(address string) ConnectedSites {
	sites := make(ConnectedSites, len(s))
	for origin := range s {
		sites[origin] = address
	}
	return sites
}

// NormalizeOrigin reduces a page url to scheme://host[:port]. Values that
// cannot be parsed as absolute urls are returned trimmed but untouched.
func NormalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return origin
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}
