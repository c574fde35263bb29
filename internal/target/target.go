// Package target converts user-supplied target strings into bounded,
// ordered sequences of probe units. Expansion never touches the network
// and fails fast: a malformed or oversized specification is rejected
// before any probe traffic is generated.
package target

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/averlane/osprey/internal/errors"
)

// Kind classifies a parsed target specification.
type Kind string

const (
	KindSingleIP  Kind = "single_ip"
	KindCIDR      Kind = "cidr"
	KindRange     Kind = "range"
	KindPortRange Kind = "port_range"
	KindDomain    Kind = "domain"
)

// Spec is a raw target string together with its resolved kind.
type Spec struct {
	Raw  string
	Kind Kind
}

const (
	// maxExpandBits caps address expansion at a /16-equivalent block
	// (65,536 addresses). Larger blocks are rejected outright; the
	// guardrail override does not lift this cap.
	maxExpandBits = 16

	maxAddrExpansion = 1 << maxExpandBits

	// maxPortsPerRange caps a single start-end port segment.
	maxPortsPerRange = 10000

	// maxTotalPorts caps the cumulative port count across segments.
	maxTotalPorts = 65535
)

// ExpandIPs parses raw as a single IP, CIDR block, or dash range and
// returns every address in ascending order. Dash ranges are IPv4 only.
func ExpandIPs(raw string) (Spec, []netip.Addr, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Spec{}, nil, errors.NewParseError(raw, "empty target")
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return Spec{Raw: trimmed, Kind: KindSingleIP}, []netip.Addr{addr.Unmap()}, nil
	}

	if strings.Contains(trimmed, "/") {
		addrs, err := expandCIDR(trimmed)
		if err != nil {
			return Spec{}, nil, err
		}
		return Spec{Raw: trimmed, Kind: KindCIDR}, addrs, nil
	}

	if strings.Contains(trimmed, "-") {
		addrs, err := expandRange(trimmed)
		if err != nil {
			return Spec{}, nil, err
		}
		return Spec{Raw: trimmed, Kind: KindRange}, addrs, nil
	}

	return Spec{}, nil, errors.ErrInvalidTarget(trimmed)
}

// expandCIDR returns every address in the block, network and broadcast
// included, in ascending numeric order.
func expandCIDR(raw string) ([]netip.Addr, error) {
	prefix, err := netip.ParsePrefix(raw)
	if err != nil {
		return nil, errors.WrapParseError(raw, "invalid CIDR notation", err)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > maxExpandBits {
		return nil, errors.NewParseError(raw,
			fmt.Sprintf("network too large to expand: %d host bits exceeds the /%d-equivalent limit",
				hostBits, prefix.Addr().BitLen()-maxExpandBits))
	}

	count := 1 << hostBits
	addrs := make([]netip.Addr, 0, count)
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// expandRange returns every address from start to end inclusive.
// IPv6 ranges are not supported.
func expandRange(raw string) ([]netip.Addr, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return nil, errors.NewParseError(raw, "range must be exactly ip1-ip2")
	}

	start, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, errors.WrapParseError(raw, "invalid range start address", err)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, errors.WrapParseError(raw, "invalid range end address", err)
	}

	if start.Is6() || end.Is6() {
		return nil, errors.NewParseError(raw, "IPv6 ranges are not supported; use CIDR notation instead")
	}

	startN := addrToUint32(start)
	endN := addrToUint32(end)
	if startN > endN {
		return nil, errors.NewParseError(raw, "range start address is greater than end address")
	}
	if uint64(endN)-uint64(startN)+1 > maxAddrExpansion {
		return nil, errors.NewParseError(raw,
			fmt.Sprintf("range too large to expand (limit %d addresses)", maxAddrExpansion))
	}

	addrs := make([]netip.Addr, 0, endN-startN+1)
	for n := startN; ; n++ {
		addrs = append(addrs, uint32ToAddr(n))
		if n == endN {
			break
		}
	}
	return addrs, nil
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(n uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
}

// ExpandPorts parses a comma-separated port specification of single ports
// and start-end ranges, returning ports in input order with duplicates
// removed. A single range may not exceed 10,000 ports and the cumulative
// total may not exceed 65,535.
func ExpandPorts(raw string) ([]uint16, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.NewParseError(raw, "empty port specification")
	}

	var ports []uint16
	seen := make(map[uint16]bool)
	total := 0

	for _, segment := range strings.Split(trimmed, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, errors.NewParseError(raw, "empty port segment")
		}

		start, end, err := parsePortSegment(raw, segment)
		if err != nil {
			return nil, err
		}

		if int(end)-int(start)+1 > maxPortsPerRange {
			return nil, errors.NewParseError(raw,
				fmt.Sprintf("port range %s exceeds the %d-port limit", segment, maxPortsPerRange))
		}
		total += int(end) - int(start) + 1
		if total > maxTotalPorts {
			return nil, errors.NewParseError(raw,
				fmt.Sprintf("port specification exceeds %d total ports", maxTotalPorts))
		}

		for p := int(start); p <= int(end); p++ {
			port := uint16(p)
			if !seen[port] {
				seen[port] = true
				ports = append(ports, port)
			}
		}
	}

	return ports, nil
}

func parsePortSegment(raw, segment string) (start, end uint16, err error) {
	if before, after, found := strings.Cut(segment, "-"); found {
		start, err = parsePort(raw, before)
		if err != nil {
			return 0, 0, err
		}
		end, err = parsePort(raw, after)
		if err != nil {
			return 0, 0, err
		}
		if start > end {
			return 0, 0, errors.NewParseError(raw,
				fmt.Sprintf("inverted port range %s: start is greater than end", segment))
		}
		return start, end, nil
	}

	start, err = parsePort(raw, segment)
	return start, start, err
}

func parsePort(raw, s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.WrapParseError(raw, fmt.Sprintf("invalid port %q", strings.TrimSpace(s)), err)
	}
	if n < 1 || n > 65535 {
		return 0, errors.NewParseError(raw, fmt.Sprintf("port %d out of range (1-65535)", n))
	}
	return uint16(n), nil
}

// ExpandWordlist produces "{word}.{domain}" candidates in wordlist order.
// The built-in list contains no duplicates, so no dedup is applied.
func ExpandWordlist(domain string, words []string) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	candidates := make([]string, 0, len(words))
	for _, word := range words {
		candidates = append(candidates, word+"."+domain)
	}
	return candidates
}

// Guardrail rejects a batch whose expanded unit count exceeds ceiling,
// unless override is set. It runs after expansion size is known and
// before any probing starts.
func Guardrail(units, ceiling int, override bool) error {
	if override || units <= ceiling {
		return nil
	}
	return errors.NewGuardrailError(units, ceiling)
}
