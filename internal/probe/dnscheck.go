package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

type DNSClass string

const (
	DNSResolves        DNSClass = "RESOLVES"
	DNSNXDomain        DNSClass = "NXDOMAIN"
	DNSNoARecord       DNSClass = "NO_A_RECORD"
	DNSServfailTimeout DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName     DNSClass = "INVALID_NAME"
)

// DNSStatus explains why a host might be unreachable. It is diagnostic only.
type DNSStatus struct {
	Domain        string
	HasAOrAAAA    bool
	IPs           []net.IP
	CNAME         string
	HasNS         bool
	Nameservers   []string
	Class         DNSClass
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// DiagnoseDNS classifies how the host part of a check target resolves.
// host may carry a path or query ("example.com/health?x=1").
func DiagnoseDNS(ctx context.Context, host string) DNSStatus {
	s := DNSStatus{Domain: hostname(host)}
	if s.Domain == "" || strings.Contains(host, "://") {
		s.Class = DNSInvalidName
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{} // OS resolver

	ips, err := r.LookupIP(ctx, "ip", s.Domain)
	if err == nil && len(ips) > 0 {
		s.HasAOrAAAA = true
		s.IPs = ips
		s.Class = DNSResolves
		return s
	}
	if err != nil {
		var de *net.DNSError
		s.ResolverError = err.Error()
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServfailTimeout
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		s.HasNS = true
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case s.HasNS:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServfailTimeout
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}

// hostname strips port, path and query from a check host.
func hostname(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	u, err := url.Parse("http://" + host)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
