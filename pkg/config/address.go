package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NetworkTCP is the only stream network supported today. The Address type
// keeps the network explicit so further kinds can be added without touching
// callers.
const NetworkTCP = "tcp"

// Address identifies a stream endpoint the server listens on or a client
// dials.
type Address struct {
	Network string
	Host    string
	Port    int
}

// DefaultListen returns the default bind address.
func DefaultListen() Address {
	return Address{Network: NetworkTCP, Host: DefaultListenHost, Port: DefaultListenPort}
}

// ParseAddress parses "host:port" or "network://host:port".
func ParseAddress(s string) (Address, error) {
	network := NetworkTCP
	rest := s
	if before, after, found := strings.Cut(s, "://"); found {
		network = before
		rest = after
	}

	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Address{}, fmt.Errorf("invalid port in address %q", s)
	}
	return Address{Network: network, Host: host, Port: port}, nil
}

// HostPort returns the "host:port" form used by the net package.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a Address) String() string {
	return fmt.Sprintf("%s://%s", a.Network, a.HostPort())
}
