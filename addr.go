package paper

import (
	"net"
	"net/url"
	"strconv"
)

// Scheme is the fixed URL scheme of paper-cache addresses.
const Scheme = "paper"

// Addr is the endpoint of a paper-cache server, parsed once at client
// construction and immutable afterwards.
type Addr struct {
	Host string
	Port int
}

// String returns the host:port form used to dial.
func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// AddrError reports a malformed address string. It is fatal to construction
// and never retried.
type AddrError struct {
	Addr   string
	Reason string
}

func (e *AddrError) Error() string {
	return "paper: invalid address " + strconv.Quote(e.Addr) + ": " + e.Reason
}

// ParseAddr parses an address of the form paper://host:port.
func ParseAddr(s string) (Addr, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Addr{}, &AddrError{Addr: s, Reason: err.Error()}
	}

	if u.Scheme != Scheme {
		return Addr{}, &AddrError{Addr: s, Reason: "scheme must be " + strconv.Quote(Scheme)}
	}

	host := u.Hostname()
	if host == "" {
		return Addr{}, &AddrError{Addr: s, Reason: "missing host"}
	}

	portStr := u.Port()
	if portStr == "" {
		return Addr{}, &AddrError{Addr: s, Reason: "missing port"}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, &AddrError{Addr: s, Reason: "non-numeric port"}
	}

	if port < 1 || port > 65535 {
		return Addr{}, &AddrError{Addr: s, Reason: "port out of range"}
	}

	if u.Path != "" || u.RawQuery != "" || u.User != nil {
		return Addr{}, &AddrError{Addr: s, Reason: "unexpected path, query or user info"}
	}

	return Addr{Host: host, Port: port}, nil
}
