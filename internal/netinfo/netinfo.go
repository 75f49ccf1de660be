// Package netinfo discovers the host's LAN-reachable address for building
// absolute URLs handed to external receivers.
package netinfo

import (
	"net"
	"os"
)

// probeAddr is a well-known external address used to select the primary
// route. No packets are sent; a UDP "connect" only binds the local socket.
const probeAddr = "8.8.8.8:80"

// LocalIP returns a best-effort non-loopback IPv4 address for this host.
// It tries a UDP connect probe first, then hostname resolution, and falls
// back to loopback. Intended to run once at gateway startup; no retries.
func LocalIP() string {
	if ip := probeIP(); ip != "" {
		return ip
	}
	if ip := hostnameIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// probeIP reads the local address of a UDP socket connected to probeAddr.
func probeIP() string {
	conn, err := net.Dial("udp4", probeAddr)
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsLoopback() {
		return ""
	}
	if v4 := addr.IP.To4(); v4 != nil {
		return v4.String()
	}
	return ""
}

// hostnameIP resolves the local hostname and picks a non-loopback IPv4.
func hostnameIP() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	addrs, err := net.LookupIP(name)
	if err != nil {
		return ""
	}
	for _, ip := range addrs {
		if ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
