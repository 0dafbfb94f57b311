// Package resolver drives the recursive resolution state machine: consult
// the cache, pick a target provider, invoke the backend, classify the
// response, and recurse on referrals and glueless NS names.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/backend"
	"github.com/fenwicklabs/recurdns/cache"
	"github.com/fenwicklabs/recurdns/dnsname"
	"github.com/fenwicklabs/recurdns/target"
	"github.com/fenwicklabs/recurdns/telemetry"
)

// MaxRecursionDepth bounds nested sub-resolutions of glueless NS names.
const MaxRecursionDepth = 5

// DefaultCacheCapacity is used by New when no capacity is given.
const DefaultCacheCapacity = 10_000

// DefaultRoots seeds the resolver with a single root IPv4
// (i.root-servers.net) for reproducibility. A non-empty Config.Roots
// replaces this list.
var DefaultRoots = []net.IP{net.ParseIP("192.36.148.17")}

// Config configures a Resolver. The zero value is valid; every field has a
// sensible default.
type Config struct {
	// Backend performs the actual query/response exchange. Defaults to
	// &backend.UDP{}.
	Backend backend.Backend
	// Roots is the bootstrap list of root server IPs. Defaults to
	// DefaultRoots.
	Roots []net.IP
	// CacheCapacity bounds the DNS cache. Defaults to DefaultCacheCapacity.
	CacheCapacity int
}

// Resolver resolves DNS queries recursively. It is safe for concurrent use;
// its only mutable state is the shared cache.
type Resolver struct {
	backend backend.Backend
	roots   []net.IP
	cache   *cache.Cache
}

// New returns a Resolver configured by cfg.
func New(cfg Config) *Resolver {
	b := cfg.Backend
	if b == nil {
		b = &backend.UDP{}
	}
	roots := cfg.Roots
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	return &Resolver{
		backend: b,
		roots:   roots,
		cache:   cache.New(capacity),
	}
}

// queryState is per-resolution, call-stack-local state: it must never be
// stored on the Resolver, or concurrent resolutions would corrupt each
// other's loop detection.
type queryState struct {
	seen map[cache.Query]bool
}

// Resolve performs a recursive lookup of (name, qtype), starting from the
// cache and falling back to the root servers.
func (r *Resolver) Resolve(ctx context.Context, name dnsname.Name, qtype uint16) ([]dns.RR, error) {
	state := &queryState{seen: map[cache.Query]bool{}}
	return r.resolve(ctx, name, qtype, state, 0)
}

func (r *Resolver) resolve(ctx context.Context, name dnsname.Name, qtype uint16, state *queryState, depth int) ([]dns.RR, error) {
	if depth > MaxRecursionDepth {
		telemetry.RecursionDepthExceededTotal.Inc()
		return nil, ServFail("recursion too deep")
	}

	qk := cache.Query{Name: name, Type: qtype}
	if state.seen[qk] {
		return nil, ServFail(fmt.Sprintf("seen twice: %s %s", dns.TypeToString[qtype], name))
	}
	state.seen[qk] = true

	now := time.Now()

	resp := r.cache.GetBestRecord(qk, now)
	if resp.Kind == cache.Authoritative {
		telemetry.CacheHitsTotal.Inc()
		return resp.Records, nil
	}

	var provider target.Provider
	if resp.Kind == cache.Referral {
		telemetry.CacheHitsTotal.Inc()
		provider = target.NewNS(resp.NS, resp.Glue)
	} else {
		telemetry.CacheMissesTotal.Inc()
		provider = target.NewRoots(r.roots)
	}

	for {
		t, ok := provider.Next()
		if !ok {
			return nil, ServFail("no more nameservers to try")
		}

		ip, err := r.resolveTargetToIP(ctx, t, state, depth)
		if err != nil {
			return nil, err
		}

		msg, err := r.backend.Query(ctx, ip, name, qtype)
		telemetry.Log.WithFields(logFields(name, qtype, ip, err)).Debug("backend query")
		if err != nil {
			return nil, classifyTransportError(err)
		}

		switch {
		case msg.Rcode == dns.RcodeNameError:
			telemetry.QueriesTotal.WithLabelValues("nxdomain").Inc()
			return nil, NXDomain()
		case isFinal(msg):
			telemetry.QueriesTotal.WithLabelValues("answer").Inc()
			r.cache.Store(qk, msg.Answer, now)
			return msg.Answer, nil
		default:
			telemetry.QueriesTotal.WithLabelValues("referral").Inc()
			r.cache.StoreReferral(msg.Ns, msg.Extra, name, now)
			provider = target.NewNS(msg.Ns, msg.Extra)
		}
	}
}

func (r *Resolver) resolveTargetToIP(ctx context.Context, t target.Target, state *queryState, depth int) (net.IP, error) {
	if t.IsIP {
		return t.IP, nil
	}

	records, err := r.resolve(ctx, t.Name, dns.TypeA, state, depth+1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ServFail(fmt.Sprintf("NS name %s resolved to an empty result", t.Name))
	}

	last := records[len(records)-1]
	a, ok := last.(*dns.A)
	if !ok {
		return nil, ServFail(fmt.Sprintf("NS name %s resolved to non-A rdata", t.Name))
	}

	return a.A, nil
}

func isFinal(m *dns.Msg) bool {
	return m != nil && m.Authoritative && len(m.Answer) > 0
}

func classifyTransportError(err error) *Error {
	if errors.Is(err, backend.ErrDecode) {
		return protocolError("decoding backend response", err)
	}
	return ioError("querying backend", err)
}

func logFields(name dnsname.Name, qtype uint16, ip net.IP, err error) map[string]interface{} {
	fields := map[string]interface{}{
		"name": name.String(),
		"type": dns.TypeToString[qtype],
		"ip":   ip.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	return fields
}
