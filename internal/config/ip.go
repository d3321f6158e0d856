package config

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// IPFilter decides whether a peer address may connect. An explicit
// allow entry always wins; otherwise the address is denied when it
// equals a banned entry or lies inside a banned inclusive range. The
// IPv4 and IPv6 namespaces are independent.
type IPFilter struct {
	allowed map[netip.Addr]struct{}
	banned  map[netip.Addr]struct{}
	ranges  map[ipRange]struct{}
}

type ipRange struct {
	from, to netip.Addr
}

func (r ipRange) contains(a netip.Addr) bool {
	if a.Is4() != r.from.Is4() {
		return false
	}
	return r.from.Compare(a) <= 0 && a.Compare(r.to) <= 0
}

// NewIPFilter returns an empty filter that allows everything.
func NewIPFilter() *IPFilter {
	return &IPFilter{
		allowed: make(map[netip.Addr]struct{}),
		banned:  make(map[netip.Addr]struct{}),
		ranges:  make(map[ipRange]struct{}),
	}
}

// Allow allow-lists one address.
func (f *IPFilter) Allow(addr netip.Addr) {
	f.allowed[addr] = struct{}{}
}

// Ban denies one address.
func (f *IPFilter) Ban(addr netip.Addr) {
	f.banned[addr] = struct{}{}
}

// BanRange denies the inclusive range between from and to. The
// endpoints must share an address family; a reversed range is
// normalized.
func (f *IPFilter) BanRange(from, to netip.Addr) error {
	if from.Is4() != to.Is4() {
		return fmt.Errorf("ip range endpoints must share an address family")
	}
	if from.Compare(to) > 0 {
		from, to = to, from
	}
	f.ranges[ipRange{from: from, to: to}] = struct{}{}
	return nil
}

// Allowed reports whether addr passes the filter.
func (f *IPFilter) Allowed(addr netip.Addr) bool {
	if _, ok := f.allowed[addr]; ok {
		return true
	}
	if _, ok := f.banned[addr]; ok {
		return false
	}
	for r := range f.ranges {
		if r.contains(addr) {
			return false
		}
	}
	return true
}

// merge unions every rule set of other into f.
func (f *IPFilter) merge(other *IPFilter) {
	for a := range other.allowed {
		f.allowed[a] = struct{}{}
	}
	for a := range other.banned {
		f.banned[a] = struct{}{}
	}
	for r := range other.ranges {
		f.ranges[r] = struct{}{}
	}
}

func (f *IPFilter) processLine(line string) error {
	sub, arg := splitCommand(line)
	switch sub {
	case "allow":
		addr, err := parseAddrArg("ip allow", arg)
		if err != nil {
			return err
		}
		f.Allow(addr)
		return nil
	case "ban":
		addr, err := parseAddrArg("ip ban", arg)
		if err != nil {
			return err
		}
		f.Ban(addr)
		return nil
	case "ban-range":
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			return fmt.Errorf("two IP addresses were expected after `ip ban-range`")
		}
		from, err := parseAddrArg("ip ban-range", fields[0])
		if err != nil {
			return err
		}
		to, err := parseAddrArg("ip ban-range", fields[1])
		if err != nil {
			return err
		}
		return f.BanRange(from, to)
	default:
		return fmt.Errorf("`ip %s`: unknown sub-command", sub)
	}
}

func parseAddrArg(cmd, arg string) (netip.Addr, error) {
	if arg == "" {
		return netip.Addr{}, fmt.Errorf("an IP address was expected after `%s`", cmd)
	}
	addr, err := netip.ParseAddr(arg)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("`%s` is an invalid IP address: %v", arg, err)
	}
	return addr, nil
}

// canonicalLines emits the filter as parseable config lines in a
// stable order.
func (f *IPFilter) canonicalLines() []string {
	var lines []string
	for a := range f.allowed {
		lines = append(lines, "ip allow "+a.String())
	}
	for a := range f.banned {
		lines = append(lines, "ip ban "+a.String())
	}
	for r := range f.ranges {
		lines = append(lines, "ip ban-range "+r.from.String()+" "+r.to.String())
	}
	sort.Strings(lines)
	return lines
}
