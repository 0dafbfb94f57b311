// Package cache specializes lru.Cache for DNS: keys are (name, type) pairs
// and values are record lists, with the poisoning-resistance and
// glue-assembly rules a recursive resolver needs.
package cache

import (
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/dnsname"
	"github.com/fenwicklabs/recurdns/lru"
)

// Query is a DNS cache key: a name and record type, compared
// case-insensitively on the name.
type Query struct {
	Name dnsname.Name
	Type uint16
}

// ResponseKind discriminates the three cases of a Response.
type ResponseKind int

const (
	// None indicates the cache has nothing useful for the query.
	None ResponseKind = iota
	// Authoritative indicates an exact cache hit for the query itself.
	Authoritative
	// Referral indicates a cache hit for an ancestor zone's NS records.
	Referral
)

// Response is the tagged result of GetBestRecord.
type Response struct {
	Kind    ResponseKind
	Records []dns.RR // Authoritative
	NS      []dns.RR // Referral
	Glue    []dns.RR // Referral
}

// Cache is a DNS-specialized TTL-aware LRU cache.
type Cache struct {
	lru *lru.Cache[Query, []dns.RR]
}

// New returns a Cache bounded to capacity entries.
func New(capacity int) *Cache {
	return &Cache{lru: lru.New[Query, []dns.RR](capacity)}
}

// Store inserts records under q, unless the minimum TTL across records is
// zero, in which case the write is silently suppressed.
func (c *Cache) Store(q Query, records []dns.RR, now time.Time) {
	ttl, ok := minTTL(records)
	if !ok || ttl == 0 {
		return
	}
	c.lru.StoreWithTTL(q, records, now.Add(time.Duration(ttl)*time.Second))
}

// GetAndUpdateTTL returns the records stored for q, with each record's Hdr.Ttl
// rewritten to the remaining lifetime in whole seconds.
func (c *Cache) GetAndUpdateTTL(q Query, now time.Time) ([]dns.RR, bool) {
	records, remaining, ok := c.lru.GetWithRemainingTTL(q, now)
	if !ok {
		return nil, false
	}

	ttl := uint32(remaining / time.Second) // floor, never round up past the real expiry
	out := make([]dns.RR, len(records))
	for i, rr := range records {
		cp := dns.Copy(rr)
		cp.Header().Ttl = ttl
		out[i] = cp
	}

	return out, true
}

// StoreReferral validates the referral's eligibility (see IsEligible) and,
// if eligible, stores one cache entry per (name, type) group across both
// the NS and glue record lists. Ineligible referrals leave the cache
// unchanged.
func (c *Cache) StoreReferral(ns, glue []dns.RR, toResolve dnsname.Name, now time.Time) {
	if !IsEligible(ns, glue, toResolve) {
		return
	}

	for _, group := range groupByNameType(ns) {
		c.Store(group.query, group.records, now)
	}
	for _, group := range groupByNameType(glue) {
		c.Store(group.query, group.records, now)
	}
}

// GetBestRecord attempts, in order: an exact match for q (Authoritative);
// a referral from the closest ancestor zone that has a cached NS set
// (Referral, with glue assembled from cached A records for the NS
// targets, in NS-record order); otherwise None.
func (c *Cache) GetBestRecord(q Query, now time.Time) Response {
	if records, ok := c.GetAndUpdateTTL(q, now); ok {
		return Response{Kind: Authoritative, Records: records}
	}

	for _, parent := range q.Name.Parents() {
		nsRecords, ok := c.GetAndUpdateTTL(Query{Name: parent, Type: dns.TypeNS}, now)
		if !ok || len(nsRecords) == 0 {
			continue
		}

		var glue []dns.RR
		for _, rr := range nsRecords {
			ns, ok := rr.(*dns.NS)
			if !ok {
				continue
			}
			target := dnsname.New(ns.Ns)
			if a, ok := c.GetAndUpdateTTL(Query{Name: target, Type: dns.TypeA}, now); ok {
				glue = append(glue, a...)
			}
		}

		return Response{Kind: Referral, NS: nsRecords, Glue: glue}
	}

	return Response{Kind: None}
}

func minTTL(records []dns.RR) (uint32, bool) {
	if len(records) == 0 {
		return 0, false
	}
	min := records[0].Header().Ttl
	for _, rr := range records[1:] {
		if ttl := rr.Header().Ttl; ttl < min {
			min = ttl
		}
	}
	return min, true
}

type group struct {
	query   Query
	records []dns.RR
}

func groupByNameType(records []dns.RR) []group {
	order := make([]Query, 0, len(records))
	byKey := make(map[Query][]dns.RR, len(records))

	for _, rr := range records {
		q := Query{Name: dnsname.New(rr.Header().Name), Type: rr.Header().Rrtype}
		if _, ok := byKey[q]; !ok {
			order = append(order, q)
		}
		byKey[q] = append(byKey[q], rr)
	}

	groups := make([]group, 0, len(order))
	for _, q := range order {
		groups = append(groups, group{query: q, records: byKey[q]})
	}
	return groups
}

// IsEligible implements the poisoning-resistance rule: every NS record's
// owner must be an ancestor of, or equal to, toResolve, and every glue
// record's owner must be one of the NS records' target names.
func IsEligible(ns, glue []dns.RR, toResolve dnsname.Name) bool {
	targets := make(map[string]bool, len(ns))

	for _, rr := range ns {
		nsRR, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		owner := dnsname.New(nsRR.Hdr.Name)
		if !owner.ZoneOf(toResolve) {
			return false
		}
		targets[strings.ToLower(dns.CanonicalName(nsRR.Ns))] = true
	}

	for _, rr := range glue {
		owner := strings.ToLower(dns.CanonicalName(rr.Header().Name))
		if !targets[owner] {
			return false
		}
	}

	return true
}
