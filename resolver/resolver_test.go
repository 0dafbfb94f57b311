package resolver

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/recurdns/backend"
	"github.com/fenwicklabs/recurdns/cache"
	"github.com/fenwicklabs/recurdns/dnsname"
)

func a(name string, ttl uint32, ip string) *dns.A {
	rr := new(dns.A)
	rr.Hdr = dns.RR_Header{Name: dns.CanonicalName(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl}
	rr.A = net.ParseIP(ip)
	return rr
}

func ns(name string, ttl uint32, target string) *dns.NS {
	rr := new(dns.NS)
	rr.Hdr = dns.RR_Header{Name: dns.CanonicalName(name), Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: ttl}
	rr.Ns = dns.CanonicalName(target)
	return rr
}

func referral(nsRecords []dns.RR, glue []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.Ns = nsRecords
	m.Extra = glue
	return m
}

func answer(records []dns.RR) *dns.Msg {
	m := new(dns.Msg)
	m.Authoritative = true
	m.Answer = records
	return m
}

func nxdomain() *dns.Msg {
	m := new(dns.Msg)
	m.Rcode = dns.RcodeNameError
	return m
}

func TestIsFinal(t *testing.T) {
	assert.False(t, isFinal(nil))
	assert.True(t, isFinal(answer([]dns.RR{a("www.example.com.", 300, "93.184.216.34")})))
	assert.False(t, isFinal(&dns.Msg{Authoritative: true}))
	assert.False(t, isFinal(&dns.Msg{Answer: []dns.RR{a("www.example.com.", 300, "93.184.216.34")}}))
}

const rootIP = "192.36.148.17"

func TestResolve_HappyPath(t *testing.T) {
	fake := backend.NewFake()

	fake.Add(rootIP, "www.example.com.", dns.TypeA, referral(
		[]dns.RR{ns("com.", 300, "a.gtld-servers.net.")},
		[]dns.RR{a("a.gtld-servers.net.", 300, "192.0.2.1")},
	))
	fake.Add("192.0.2.1", "www.example.com.", dns.TypeA, referral(
		[]dns.RR{ns("example.com.", 300, "ns1.example.com.")},
		[]dns.RR{a("ns1.example.com.", 300, "192.0.2.2")},
	))
	fake.Add("192.0.2.2", "www.example.com.", dns.TypeA, answer(
		[]dns.RR{a("www.example.com.", 300, "93.184.216.34")},
	))

	r := New(Config{Backend: fake, Roots: []net.IP{net.ParseIP(rootIP)}})

	records, err := r.Resolve(context.Background(), dnsname.New("www.example.com."), dns.TypeA)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "93.184.216.34", records[0].(*dns.A).A.String())
}

func TestResolve_NXDomain(t *testing.T) {
	fake := backend.NewFake()
	fake.Add(rootIP, "nx.example.", dns.TypeA, nxdomain())

	r := New(Config{Backend: fake, Roots: []net.IP{net.ParseIP(rootIP)}})

	_, err := r.Resolve(context.Background(), dnsname.New("nx.example."), dns.TypeA)
	require.Error(t, err)

	var resolveErr *Error
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindNXDomain, resolveErr.Kind)
}

// TestResolve_LoopDetection sets up a referral cycle where ns.c.d. and
// ns.a.b. refer to each other without glue, so the A lookup needed to turn
// one into an IP revisits the other's A lookup already in flight. The
// second hop off ns.a.b. is served from the cache (the b. NS set was
// already cached while resolving a.b.), so the loop closes without a third
// root query.
func TestResolve_LoopDetection(t *testing.T) {
	fake := backend.NewFake()
	fake.Add(rootIP, "a.b.", dns.TypeA, referral([]dns.RR{ns("b.", 300, "ns.c.d.")}, nil))
	fake.Add(rootIP, "ns.c.d.", dns.TypeA, referral([]dns.RR{ns("d.", 300, "ns.a.b.")}, nil))

	r := New(Config{Backend: fake, Roots: []net.IP{net.ParseIP(rootIP)}})

	_, err := r.Resolve(context.Background(), dnsname.New("a.b."), dns.TypeA)
	require.Error(t, err)

	var resolveErr *Error
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindServFail, resolveErr.Kind)
	assert.Contains(t, resolveErr.Message, "seen twice")
}

func TestResolve_RecursionDepthExceeded(t *testing.T) {
	r := New(Config{Backend: backend.NewFake(), Roots: []net.IP{net.ParseIP(rootIP)}})
	state := &queryState{seen: map[cache.Query]bool{}}

	_, err := r.resolve(context.Background(), dnsname.New("deep.example."), dns.TypeA, state, MaxRecursionDepth+1)
	require.Error(t, err)

	var resolveErr *Error
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindServFail, resolveErr.Kind)
	assert.Contains(t, resolveErr.Message, "recursion too deep")
}

func TestResolve_IOErrorIsClassified(t *testing.T) {
	r := New(Config{Backend: backend.ServFail{}, Roots: []net.IP{net.ParseIP(rootIP)}})

	_, err := r.Resolve(context.Background(), dnsname.New("example.com."), dns.TypeA)
	require.Error(t, err)

	var resolveErr *Error
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindIOError, resolveErr.Kind)
}
