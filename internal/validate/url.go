// Package validate provides input validation for externally supplied
// values, most importantly the URLs the ingestor is configured to fetch.
package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors.
var (
	ErrEmptyURL         = errors.New("URL is empty")
	ErrURLTooLong       = errors.New("URL is too long")
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // e.g. []string{"https", "http"}
	BlockPrivate   bool     // Block private/loopback addresses (SSRF protection)
	MaxLength      int      // Maximum URL length (0 = no limit)
}

// SourceURLConstraints applies to the feed and listing URLs the ingestor
// fetches on every refresh. These are operator-configured but the fetch runs
// with the service's network access, so private addresses are blocked.
var SourceURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// ItemURLConstraints applies to the detail URLs carried on normalized grants
// and news items. They are stored and displayed, never fetched, so only the
// syntax is checked.
var ItemURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   false,
	MaxLength:      2048,
}

// URL validates a URL against the given constraints and returns the
// trimmed URL string.
func URL(urlStr string, constraints URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrEmptyURL
	}
	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrURLTooLong, constraints.MaxLength)
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if len(constraints.AllowedSchemes) > 0 {
		allowed := false
		for _, scheme := range constraints.AllowedSchemes {
			if parsed.Scheme == scheme {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, parsed.Scheme, constraints.AllowedSchemes)
		}
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if constraints.BlockPrivate {
		if err := checkSSRF(hostname); err != nil {
			return "", err
		}
	}

	return urlStr, nil
}

// SourceURL validates a configured producer URL.
func SourceURL(urlStr string) (string, error) {
	return URL(urlStr, SourceURLConstraints)
}

// ItemURL validates a grant or news detail URL.
func ItemURL(urlStr string) (string, error) {
	return URL(urlStr, ItemURLConstraints)
}

// checkSSRF blocks hostnames that resolve to private, loopback, or
// link-local addresses.
func checkSSRF(hostname string) error {
	lower := strings.ToLower(hostname)
	if lower == "localhost" || lower == "localhost.localdomain" {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip.String())
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// Unresolvable hostnames are allowed here; the fetch itself will
		// fail with a clearer error if DNS stays broken.
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip.String())
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 10:
			return true
		case ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31:
			return true
		case ip4[0] == 192 && ip4[1] == 168:
			return true
		case ip4[0] == 169 && ip4[1] == 254:
			return true
		}
		return false
	}
	// fc00::/7 unique local IPv6
	return len(ip) == 16 && (ip[0]&0xfe) == 0xfc
}
