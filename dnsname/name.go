// Package dnsname implements the fully-qualified-domain-name value type
// shared by the cache, target and resolver packages.
package dnsname

import (
	"strings"

	"github.com/miekg/dns"
)

// Name is a fully-qualified DNS name, compared case-insensitively. The zero
// value is the root name ".".
type Name struct {
	fqdn string // canonical, dot-terminated, as returned by dns.CanonicalName
}

// New returns the Name for s, which need not be dot-terminated or
// canonically cased.
func New(s string) Name {
	return Name{fqdn: dns.CanonicalName(s)}
}

// String returns the canonical, dot-terminated representation.
func (n Name) String() string {
	if n.fqdn == "" {
		return "."
	}
	return n.fqdn
}

// Equal reports whether n and other denote the same name, ignoring case.
func (n Name) Equal(other Name) bool {
	return strings.EqualFold(n.String(), other.String())
}

// NumLabels returns the number of labels in n, excluding the root label.
// "com." has one label, "." has zero.
func (n Name) NumLabels() int {
	if n.fqdn == "." || n.fqdn == "" {
		return 0
	}
	return len(dns.SplitDomainName(n.fqdn))
}

// Base strips the leftmost label, returning the parent zone. Base of "."
// is ".".
func (n Name) Base() Name {
	labels := dns.SplitDomainName(n.fqdn)
	if len(labels) <= 1 {
		return Name{fqdn: "."}
	}
	return Name{fqdn: dns.CanonicalName(strings.Join(labels[1:], "."))}
}

// ZoneOf reports whether n is an ancestor of, or equal to, child.
func (n Name) ZoneOf(child Name) bool {
	return dns.IsSubDomain(n.fqdn, child.fqdn)
}

// Parents returns n's strict ancestors, closest first, stopping before the
// root label. Parents of "a.b.com." is ["b.com.", "com."].
func (n Name) Parents() []Name {
	var parents []Name
	cur := n
	for {
		if cur.NumLabels() == 0 {
			break
		}
		cur = cur.Base()
		if cur.NumLabels() == 0 {
			break
		}
		parents = append(parents, cur)
	}
	return parents
}
