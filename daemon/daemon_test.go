package daemon

import (
	"context"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"

	"github.com/fenwicklabs/recurdns/backend"
	"github.com/fenwicklabs/recurdns/resolver"
)

func TestResolve_NoQuestionIsFormErr(t *testing.T) {
	req := new(dns.Msg)
	req.Id = 4711

	r := resolver.New(resolver.Config{Backend: backend.NewFake()})
	resp := resolve(context.Background(), req, r)

	assert.Equal(t, dns.RcodeFormatError, resp.Rcode)
	assert.Equal(t, uint16(4711), resp.Id)
}

func TestResolve_BackendFailureIsServFail(t *testing.T) {
	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA) // SetQuestion assigns a random Id
	req.Id = 4712

	r := resolver.New(resolver.Config{Backend: backend.ServFail{}})
	resp := resolve(context.Background(), req, r)

	assert.Equal(t, dns.RcodeServerFailure, resp.Rcode)
	assert.Equal(t, uint16(4712), resp.Id)
}

func TestResolve_NXDomainIsPropagated(t *testing.T) {
	fake := backend.NewFake()
	nx := new(dns.Msg)
	nx.Rcode = dns.RcodeNameError
	fake.Add("192.36.148.17", "nx.example.", dns.TypeA, nx)

	req := new(dns.Msg)
	req.Id = 4713
	req.SetQuestion("nx.example.", dns.TypeA)

	r := resolver.New(resolver.Config{Backend: fake})
	resp := resolve(context.Background(), req, r)

	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
}
