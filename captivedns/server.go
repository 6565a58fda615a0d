package captivedns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// DefaultTTL keeps clients re-resolving soon after they leave the portal.
const DefaultTTL = 60

// Server answers every A query with the portal address.
type Server struct {
	addr   string
	answer netip.Addr
	ttl    uint32
	log    *slog.Logger
	listen func(network, address string) (net.PacketConn, error)

	mu   sync.Mutex
	srv  *dns.Server
	conn net.PacketConn
	done chan struct{}
}

// New creates a responder on the UDP address addr resolving every name to answer.
func New(addr string, answer netip.Addr, log *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		answer: answer.Unmap(),
		ttl:    DefaultTTL,
		log:    log,
		listen: net.ListenPacket,
	}
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true

	if r.Opcode != dns.OpcodeQuery {
		msg.SetRcode(r, dns.RcodeNotImplemented)
		w.WriteMsg(msg)
		return
	}

	for _, q := range r.Question {
		if rr := s.answerFor(q); rr != nil {
			msg.Answer = append(msg.Answer, rr)
		}
		s.log.Debug("Captive DNS query",
			"name", strings.TrimSuffix(q.Name, "."),
			"type", dns.TypeToString[q.Qtype],
			"answered", len(msg.Answer) > 0)
	}

	if err := w.WriteMsg(msg); err != nil {
		s.log.Warn("Failed to write DNS response", "err", err)
	}
}

// answerFor returns the record for q, or nil for an empty NOERROR answer.
func (s *Server) answerFor(q dns.Question) dns.RR {
	if q.Qclass != dns.ClassINET && q.Qclass != dns.ClassANY {
		return nil
	}

	hdr := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: s.ttl}
	switch {
	case (q.Qtype == dns.TypeA || q.Qtype == dns.TypeANY) && s.answer.Is4():
		hdr.Rrtype = dns.TypeA
		return &dns.A{Hdr: hdr, A: net.IP(s.answer.AsSlice())}
	case (q.Qtype == dns.TypeAAAA || q.Qtype == dns.TypeANY) && s.answer.Is6():
		hdr.Rrtype = dns.TypeAAAA
		return &dns.AAAA{Hdr: hdr, AAAA: net.IP(s.answer.AsSlice())}
	}
	return nil
}

// Start binds the UDP socket and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("captive DNS already running")
	}

	conn, err := s.listen("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        conn,
		Handler:           s,
		NotifyStartedFunc: func() { close(started) },
	}
	done := make(chan struct{})
	var serveErr error

	go func() {
		defer close(done)
		if serveErr = srv.ActivateAndServe(); serveErr != nil {
			s.log.Error("Captive DNS failed", "err", serveErr)
		}
	}()

	select {
	case <-started:
	case <-done:
		conn.Close()
		return fmt.Errorf("captive DNS exited during startup: %w", serveErr)
	}

	s.srv = srv
	s.conn = conn
	s.done = done
	s.log.Info("Starting captive DNS", "listenAddress", conn.LocalAddr().String(), "answer", s.answer)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return s.addr
	}
	return s.conn.LocalAddr().String()
}

// Shutdown stops the responder. It is a no-op when not running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}

	err := s.srv.ShutdownContext(ctx)
	if err != nil {
		s.log.Error("Captive DNS shutdown failed", "err", err)
	} else {
		s.log.Info("Captive DNS stopped")
	}

	<-s.done
	s.srv = nil
	s.conn = nil
	return err
}
