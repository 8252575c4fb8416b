package validation

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// ValidateAbsoluteURL checks that raw is an absolute http/https URL.
// All URL-valued settings must pass this before reaching the runtime core.
func ValidateAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an absolute http/https URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", name, raw)
	}
	return nil
}

// ParseWhitelist parses a semicolon-delimited list of CIDR ranges.
// Bare addresses are accepted as single-host prefixes. Empty entries
// (doubled or trailing semicolons) are skipped.
func ParseWhitelist(list string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(list, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("whitelist entry %q is not an address or CIDR range", entry)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("whitelist entry %q is not a valid CIDR range: %w", entry, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
