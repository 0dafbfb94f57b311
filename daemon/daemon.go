// Package daemon serves DNS queries over UDP by delegating each one to a
// resolver.Resolver, one goroutine per request.
package daemon

import (
	"context"
	"errors"
	"net"

	"github.com/miekg/dns"

	"github.com/fenwicklabs/recurdns/backend"
	"github.com/fenwicklabs/recurdns/dnsname"
	"github.com/fenwicklabs/recurdns/resolver"
	"github.com/fenwicklabs/recurdns/telemetry"
)

// Resolver is the subset of resolver.Resolver the daemon depends on.
type Resolver interface {
	Resolve(ctx context.Context, name dnsname.Name, qtype uint16) ([]dns.RR, error)
}

// Serve listens for UDP queries on 0.0.0.0:port until ctx is cancelled,
// answering each with r. It blocks until the listener is closed.
func Serve(ctx context.Context, r Resolver, port int) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	telemetry.Log.WithField("port", port).Info("daemon listening")

	buf := make([]byte, backend.MaxUDPSize)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		go handle(ctx, conn, peer, r, raw)
	}
}

func handle(ctx context.Context, conn *net.UDPConn, peer *net.UDPAddr, r Resolver, raw []byte) {
	req := new(dns.Msg)
	if err := req.Unpack(raw); err != nil {
		telemetry.Log.WithError(err).Warn("daemon: discarding unparseable request")
		return
	}

	resp := resolve(ctx, req, r)

	out, err := resp.Pack()
	if err != nil {
		telemetry.Log.WithError(err).Warn("daemon: failed to encode response")
		return
	}

	if _, err := conn.WriteToUDP(out, peer); err != nil {
		telemetry.Log.WithError(err).Warn("daemon: failed to send response")
	}
}

// resolve answers one request message: FormErr when the request carries no
// question, otherwise the resolver's answer, NXDomain, or ServFail.
func resolve(ctx context.Context, req *dns.Msg, r Resolver) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)

	if len(req.Question) == 0 {
		resp.Rcode = dns.RcodeFormatError
		return resp
	}

	q := req.Question[0]
	records, err := r.Resolve(ctx, dnsname.New(q.Name), q.Qtype)
	if err != nil {
		var resolveErr *resolver.Error
		if errors.As(err, &resolveErr) && resolveErr.Kind == resolver.KindNXDomain {
			resp.Rcode = dns.RcodeNameError
		} else {
			resp.Rcode = dns.RcodeServerFailure
		}
		return resp
	}

	resp.Answer = records
	return resp
}
