package middleware

import (
	"net/http"
	"sort"
	"strings"

	authgate "github.com/halyard-io/authgate"
)

// DomainRouter maps each incoming request to exactly one role domain based
// on the path it targets. Longest prefix wins, so "/admin/api" can shadow
// "/admin". Every engine call made by the middleware is then scoped to the
// routed domain's key namespace — which is what makes cross-domain
// credential acceptance structurally impossible rather than merely
// checked.
type DomainRouter struct {
	rules    []domainRule
	fallback authgate.RoleDomain
}

type domainRule struct {
	prefix string
	domain authgate.RoleDomain
}

// NewDomainRouter creates a router whose unmatched requests resolve to
// fallback.
func NewDomainRouter(fallback authgate.RoleDomain) *DomainRouter {
	return &DomainRouter{fallback: fallback}
}

// Route registers a path prefix for a domain and returns the router for
// chaining.
func (d *DomainRouter) Route(prefix string, domain authgate.RoleDomain) *DomainRouter {
	d.rules = append(d.rules, domainRule{prefix: prefix, domain: domain})
	sort.SliceStable(d.rules, func(i, j int) bool {
		return len(d.rules[i].prefix) > len(d.rules[j].prefix)
	})
	return d
}

// Domain resolves the role domain for a request.
func (d *DomainRouter) Domain(r *http.Request) authgate.RoleDomain {
	path := r.URL.Path
	for _, rule := range d.rules {
		if strings.HasPrefix(path, rule.prefix) {
			return rule.domain
		}
	}
	return d.fallback
}
