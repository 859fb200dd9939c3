package trust

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// ErrInvalidDomain is returned for links that do not name a scorable domain.
var ErrInvalidDomain = errors.New("invalid domain")

// DomainFromURL returns the host of link without scheme, port and a leading
// "www.". e.g. "https://www.amazon.com/dp/1" -> "amazon.com".
func DomainFromURL(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty link", ErrInvalidDomain)
	}

	// Without a scheme url.Parse puts the host in Path.
	if !strings.Contains(link, "://") {
		link = "http://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidDomain, link)
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("%w: %q is an IP address", ErrInvalidDomain, host)
	}
	if strings.Contains(host, "*") || !strings.Contains(host, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, host)
	}

	if rule := publicsuffix.DefaultList.Find(host, &publicsuffix.FindOptions{IgnorePrivate: true}); rule == nil {
		return "", fmt.Errorf("%w: %q has no known public suffix", ErrInvalidDomain, host)
	}
	if _, err := publicsuffix.Domain(host); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return host, nil
}
