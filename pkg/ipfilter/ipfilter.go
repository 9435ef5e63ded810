// Package ipfilter decides whether a remote address may connect.
package ipfilter

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
)

type Mode byte

const (
	// ModeAllow only allows addresses that are part of the filter.
	ModeAllow Mode = iota
	// ModeDeny allows all addresses that are not part of the filter.
	ModeDeny
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "allow":
		return ModeAllow, nil
	case "deny":
		return ModeDeny, nil
	}
	return 0, fmt.Errorf("unknown ip filter mode %q", s)
}

// ParsePrefix parses a CIDR prefix or a single IP.
func ParsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

type Filter struct {
	mode Mode

	mu       sync.RWMutex
	prefixes map[netip.Prefix]struct{}
}

func New(mode Mode, prefixes ...netip.Prefix) *Filter {
	f := &Filter{
		mode:     mode,
		prefixes: make(map[netip.Prefix]struct{}, len(prefixes)),
	}

	for _, p := range prefixes {
		f.Add(p)
	}
	return f
}

// Add adds the prefix to the filter if it wasn't already present.
func (f *Filter) Add(p netip.Prefix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes[p.Masked()] = struct{}{}
}

// Remove removes the prefix from the filter if it was present.
func (f *Filter) Remove(p netip.Prefix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prefixes, p.Masked())
}

func (f *Filter) contains(addr netip.Addr) bool {
	addr = addr.Unmap()

	f.mu.RLock()
	defer f.mu.RUnlock()
	for p := range f.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (f *Filter) IsAllowed(addr netip.Addr) bool {
	ok := f.contains(addr)
	switch f.mode {
	case ModeAllow:
		return ok
	case ModeDeny:
		return !ok
	}
	return false
}
