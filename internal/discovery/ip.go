package discovery

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoAddress is returned when no local IPv4 address lies inside the range.
var ErrNoAddress = errors.New("no matching interface address")

// FindBrokerIP finds the first local IPv4 address inside cidr.
func FindBrokerIP(cidr string) (net.IP, error) {
	address, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}
	return matchIP(cidr, address)
}

func matchIP(cidr string, address []net.Addr) (net.IP, error) {
	_, cidrNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("address range %q: %w", cidr, err)
	}

	for _, addr := range address {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil {
			continue
		}
		if cidrNet.Contains(ip) {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoAddress, cidr)
}
