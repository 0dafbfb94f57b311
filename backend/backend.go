// Package backend performs single query/response exchanges against one
// upstream IP.
package backend

import (
	"context"
	"errors"
	"net"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/dnsname"
)

// ErrTransport and ErrDecode let callers distinguish a socket/buffer
// failure from a wire decode failure without depending on error text.
// Wrap one of these with fmt.Errorf's %w verb when returning from a
// Backend implementation.
var (
	ErrTransport = errors.New("backend: transport failure")
	ErrDecode    = errors.New("backend: decode failure")
)

// MaxUDPSize is the receive buffer size, per RFC 6891 §6.2.5.
const MaxUDPSize = 4096

// DefaultPort is the standard DNS port used when none is specified.
const DefaultPort = 53

// Backend sends one query to one upstream IP and returns its response.
type Backend interface {
	Query(ctx context.Context, ip net.IP, name dnsname.Name, qtype uint16) (*dns.Msg, error)
}

func newQuery(name dnsname.Name, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.AuthenticatedData = true
	m.Question = []dns.Question{{
		Name:   name.String(),
		Qtype:  qtype,
		Qclass: dns.ClassINET,
	}}
	return m
}
