package platforms

import (
	"fmt"
	"net/url"
	"strings"
)

// NoHostDomain is reported when the submitted URL has no parseable host.
const NoHostDomain = "not_found"

// UnsupportedError reports a URL whose registrable domain maps to no adapter.
// It is an expected, user-facing outcome rather than a fault.
type UnsupportedError struct {
	Domain string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("platform %q is not supported", e.Domain)
}

// Resolver maps a URL's registrable domain to a platform adapter. The
// mapping is immutable once constructed and is passed by reference into the
// pipeline; no process-wide mutable state.
type Resolver struct {
	adapters map[string]Adapter
}

// NewResolver builds a resolver over the given domain -> adapter mapping.
// Keys are registrable domains such as "reddit.com".
func NewResolver(adapters map[string]Adapter) *Resolver {
	m := make(map[string]Adapter, len(adapters))
	for dom, a := range adapters {
		dom = strings.ToLower(strings.TrimSpace(dom))
		if dom == "" || a == nil {
			continue
		}
		m[dom] = a
	}
	return &Resolver{adapters: m}
}

// Resolve returns the adapter responsible for the URL's registrable domain,
// or an *UnsupportedError. Pure function: no side effects, no network.
func (r *Resolver) Resolve(rawURL string) (Adapter, error) {
	domain := RegistrableDomain(rawURL)
	if domain == NoHostDomain {
		return nil, &UnsupportedError{Domain: NoHostDomain}
	}

	if a, ok := r.adapters[domain]; ok {
		return a, nil
	}
	return nil, &UnsupportedError{Domain: domain}
}

// Domains returns the supported registrable domains in no particular order.
func (r *Resolver) Domains() []string {
	out := make([]string, 0, len(r.adapters))
	for dom := range r.adapters {
		out = append(out, dom)
	}
	return out
}

// RegistrableDomain extracts the last two dot-separated labels of the URL's
// host, lowercased. Returns NoHostDomain when the URL has no host.
func RegistrableDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return NoHostDomain
	}

	labels := strings.Split(strings.ToLower(parsed.Hostname()), ".")
	if len(labels) < 2 {
		return labels[len(labels)-1]
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
