package tenancy

import (
	"net"
	"strings"
)

// NormalizeHost lowercases a Host header value and strips any port,
// including the bracketed IPv6 form.
func NormalizeHost(hostport string) string {
	host := strings.TrimSpace(hostport)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

// IsLocalHost reports whether host is localhost or a loopback/private IP.
// Such hosts never carry a tenant.
func IsLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}

// ExtractSubdomain returns the part of host in front of ".baseDomain".
// The bare base domain and local hosts have no subdomain.
//
//	johns-store.azima.store -> johns-store, true
//	azima.store             -> "", false
//	localhost:9000          -> "", false
func ExtractSubdomain(host, baseDomain string) (string, bool) {
	host = NormalizeHost(host)
	baseDomain = strings.ToLower(baseDomain)
	if host == "" || host == baseDomain || IsLocalHost(host) {
		return "", false
	}
	sub, ok := strings.CutSuffix(host, "."+baseDomain)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}

// IsCustomDomain reports whether host is neither the base domain, one of
// its subdomains, nor a local address.
func IsCustomDomain(host, baseDomain string) bool {
	host = NormalizeHost(host)
	baseDomain = strings.ToLower(baseDomain)
	if host == "" || host == baseDomain || IsLocalHost(host) {
		return false
	}
	return !strings.HasSuffix(host, "."+baseDomain)
}
