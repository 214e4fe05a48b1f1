package store

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidAddress rejects telemetry whose address does not parse as a
// dotted-decimal IPv4 address.
var ErrInvalidAddress = errors.New("invalid IPv4 address")

// SocID derives the SoC group identifier from a node address. Nodes share
// a SoC when the first three octets match and the last octet falls in the
// same band of ten, e.g. 192.168.10.201 and 192.168.10.202 map to
// 192.168.10.200 while 192.168.10.211 maps to 192.168.10.210.
func SocID(ip string) (string, error) {
	octets, err := parseIPv4(ip)
	if err != nil {
		return "", err
	}
	band := (octets[3] / 10) * 10
	return fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], band), nil
}

// BoardID derives the board group identifier from a node address. The last
// octet is banded by hundreds, so a board is a strict superset of the SoC
// groups beneath it: BoardID(addr) == BoardID(SocID(addr)) for every valid
// address.
func BoardID(ip string) (string, error) {
	octets, err := parseIPv4(ip)
	if err != nil {
		return "", err
	}
	band := (octets[3] / 100) * 100
	return fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], band), nil
}

func parseIPv4(ip string) ([4]byte, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !addr.Is4() {
		return [4]byte{}, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	return addr.As4(), nil
}
