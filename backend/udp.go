package backend

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/dnsname"
)

// UDP is the production Backend: one ephemeral UDP socket per call, no
// retransmission, no truncation handling, no EDNS OPT record.
type UDP struct {
	// Port is the upstream DNS port. Defaults to DefaultPort if zero.
	Port int
}

var _ Backend = (*UDP)(nil)

// Query implements Backend.
func (b *UDP) Query(ctx context.Context, ip net.IP, name dnsname.Name, qtype uint16) (*dns.Msg, error) {
	port := b.Port
	if port == 0 {
		port = DefaultPort
	}

	conn, err := dialUnconnectedUDP(ip, port)
	if err != nil {
		return nil, fmt.Errorf("backend: dial %s: %v: %w", ip, err, ErrTransport)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	req := newQuery(name, qtype)
	raw, err := req.Pack()
	if err != nil {
		return nil, fmt.Errorf("backend: encode query: %v: %w", err, ErrTransport)
	}

	if _, err := conn.Write(raw); err != nil {
		return nil, fmt.Errorf("backend: send to %s: %v: %w", ip, err, ErrTransport)
	}

	buf := make([]byte, MaxUDPSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("backend: receive from %s: %v: %w", ip, err, ErrTransport)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(buf[:n]); err != nil {
		return nil, fmt.Errorf("backend: decode response from %s: %v: %w", ip, err, ErrDecode)
	}

	return resp, nil
}

// dialUnconnectedUDP binds an ephemeral socket on the unspecified address of
// the family matching ip, then connects it to ip:port.
func dialUnconnectedUDP(ip net.IP, port int) (*net.UDPConn, error) {
	network := "udp4"
	local := &net.UDPAddr{IP: net.IPv4zero}
	if ip.To4() == nil {
		network = "udp6"
		local = &net.UDPAddr{IP: net.IPv6unspecified}
	}

	return net.DialUDP(network, local, &net.UDPAddr{IP: ip, Port: port})
}
