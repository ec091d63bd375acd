// Package discovery is the Network Scanner: it expands configured address
// ranges, probes each candidate for Shelly.GetDeviceInfo under a bounded
// semaphore, and splices positive identifications into the live target
// registry. It also runs the supplementary mDNS discovery mode, feeding
// the same registry splice path.
package discovery

import (
	"fmt"
	"net"
	"strings"
)

// expandRanges turns network_ranges entries (CIDR or inclusive
// A.B.C.D-E.F.G.H) into a deduplicated, exclude-filtered address list.
// Grounded on the standard library's net package: the retrieved pack
// offers no CIDR/range-expansion library narrower than net.ParseCIDR and
// net.ParseIP, so this stays on the standard library by design.
func expandRanges(ranges, excludes []string) ([]string, error) {
	exclude := make(map[string]bool, len(excludes))
	for _, ip := range excludes {
		exclude[strings.TrimSpace(ip)] = true
	}

	seen := make(map[string]bool)
	var out []string
	add := func(ip string) {
		if exclude[ip] || seen[ip] {
			return
		}
		seen[ip] = true
		out = append(out, ip)
	}

	for _, r := range ranges {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		switch {
		case strings.Contains(r, "/"):
			addrs, err := expandCIDR(r)
			if err != nil {
				return nil, fmt.Errorf("network range %q: %w", r, err)
			}
			for _, ip := range addrs {
				add(ip)
			}
		case strings.Contains(r, "-"):
			addrs, err := expandInclusiveRange(r)
			if err != nil {
				return nil, fmt.Errorf("network range %q: %w", r, err)
			}
			for _, ip := range addrs {
				add(ip)
			}
		default:
			if net.ParseIP(r) == nil {
				return nil, fmt.Errorf("network range %q: not a CIDR, range, or address", r)
			}
			add(r)
		}
	}
	return out, nil
}

func expandCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("only IPv4 ranges are supported")
	}

	var out []string
	for addr := ipnet.IP.Mask(ipnet.Mask); ipnet.Contains(addr); incIP(addr) {
		out = append(out, addr.String())
	}

	// Drop network and broadcast addresses for any range wider than a
	// /31 or /32, matching how operators actually enumerate hosts.
	if len(out) > 2 {
		out = out[1 : len(out)-1]
	}
	return out, nil
}

func expandInclusiveRange(spec string) ([]string, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected A.B.C.D-E.F.G.H")
	}
	start := net.ParseIP(strings.TrimSpace(parts[0])).To4()
	end := net.ParseIP(strings.TrimSpace(parts[1])).To4()
	if start == nil || end == nil {
		return nil, fmt.Errorf("invalid IPv4 address in range")
	}
	if ipToUint32(start) > ipToUint32(end) {
		return nil, fmt.Errorf("range start is after range end")
	}

	var out []string
	cur := append(net.IP(nil), start...)
	for {
		out = append(out, cur.String())
		if cur.Equal(end) {
			break
		}
		incIP(cur)
		if len(out) > 1<<20 {
			return nil, fmt.Errorf("range too large")
		}
	}
	return out, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
