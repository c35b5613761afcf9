package egress

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// Endpoint is one egress path: a direct connection or an HTTP proxy.
type Endpoint struct {
	// Proxy is nil for a direct connection.
	Proxy *url.URL
}

// Direct is the endpoint without a proxy.
var Direct = Endpoint{}

// IsDirect reports whether e bypasses proxies.
func (e Endpoint) IsDirect() bool { return e.Proxy == nil }

func (e Endpoint) String() string {
	if e.Proxy == nil {
		return "direct"
	}
	return e.Proxy.Host
}

// ParseProxies parses a comma-separated proxy list. Entries are
// "host:port" or "a.b.c.x-y:port", the latter expanding to one endpoint
// per address from a.b.c.x to a.b.c.y. An empty entry, or an empty list,
// stands for a direct connection. Duplicate endpoints are dropped.
func ParseProxies(list string) ([]Endpoint, error) {
	if strings.TrimSpace(list) == "" {
		return []Endpoint{Direct}, nil
	}

	var out []Endpoint
	seen := make(map[string]bool)
	add := func(e Endpoint) {
		if !seen[e.String()] {
			seen[e.String()] = true
			out = append(out, e)
		}
	}

	for _, raw := range strings.Split(list, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			add(Direct)
			continue
		}
		host, port, err := net.SplitHostPort(entry)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidProxy, err, "invalid proxy %q", entry)
		}
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			return nil, errors.New(errors.ErrCodeInvalidProxy, "invalid proxy port in %q", entry)
		}
		hosts, err := expandHost(host)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidProxy, err, "invalid proxy %q", entry)
		}
		for _, h := range hosts {
			add(Endpoint{Proxy: &url.URL{Scheme: "http", Host: net.JoinHostPort(h, port)}})
		}
	}
	return out, nil
}

func expandHost(host string) ([]string, error) {
	if !strings.Contains(host, "-") {
		if host == "" {
			return nil, errors.New(errors.ErrCodeInvalidProxy, "empty host")
		}
		return []string{host}, nil
	}

	dot := strings.LastIndex(host, ".")
	if dot < 0 || strings.Count(host, ".") != 3 {
		return nil, errors.New(errors.ErrCodeInvalidProxy, "range %q is not an IPv4 range", host)
	}
	prefix, last := host[:dot+1], host[dot+1:]
	lo, hi, ok := strings.Cut(last, "-")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidProxy, "range %q is malformed", host)
	}
	start, err1 := strconv.Atoi(lo)
	end, err2 := strconv.Atoi(hi)
	if err1 != nil || err2 != nil || start < 0 || end > 255 || start > end {
		return nil, errors.New(errors.ErrCodeInvalidProxy, "range %q is out of bounds", host)
	}
	if net.ParseIP(prefix+lo) == nil {
		return nil, errors.New(errors.ErrCodeInvalidProxy, "range %q is not an IPv4 range", host)
	}

	hosts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		hosts = append(hosts, prefix+strconv.Itoa(i))
	}
	return hosts, nil
}
