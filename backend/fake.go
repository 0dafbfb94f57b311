package backend

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/dnsname"
)

// Fake is a test Backend keyed on (target IP, name, type). Responses are
// scripted in advance with Add; a query with no matching entry fails.
type Fake struct {
	answers map[fakeKey]*dns.Msg
}

type fakeKey struct {
	ip    string
	name  string
	qtype uint16
}

// NewFake returns an empty Fake backend.
func NewFake() *Fake {
	return &Fake{answers: map[fakeKey]*dns.Msg{}}
}

// Add registers the response msg for a query to ip for (name, qtype).
func (f *Fake) Add(ip string, name string, qtype uint16, msg *dns.Msg) {
	f.answers[fakeKey{ip: ip, name: dns.CanonicalName(name), qtype: qtype}] = msg
}

// Query implements Backend.
func (f *Fake) Query(ctx context.Context, ip net.IP, name dnsname.Name, qtype uint16) (*dns.Msg, error) {
	key := fakeKey{ip: ip.String(), name: name.String(), qtype: qtype}
	msg, ok := f.answers[key]
	if !ok {
		return nil, fmt.Errorf("backend: no fake response for %s %s at %s: %w", dns.TypeToString[qtype], name, ip, ErrTransport)
	}
	return msg.Copy(), nil
}

var _ Backend = (*Fake)(nil)

// ServFail is a Backend that fails every query, for exercising the
// resolver's I/O-error path.
type ServFail struct{}

// Query implements Backend.
func (ServFail) Query(ctx context.Context, ip net.IP, name dnsname.Name, qtype uint16) (*dns.Msg, error) {
	return nil, fmt.Errorf("backend: servfail backend always fails: %w", ErrTransport)
}

var _ Backend = ServFail{}
