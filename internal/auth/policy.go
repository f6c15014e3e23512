package auth

import (
	"net/http"
	"strings"
)

// Rule requires Role for requests under Path. Path matches itself and every
// path below it; an empty Methods matches any method.
type Rule struct {
	Path    string
	Methods []string
	Role    Role
}

func (r Rule) matches(method, path string) bool {
	if path != r.Path && !strings.HasPrefix(path, r.Path+"/") {
		return false
	}
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

var readMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions}

// DefaultRules: reads need viewer, writes need operator, bulk group creation
// and group deletion need admin.
func DefaultRules() []Rule {
	return []Rule{
		{Path: "/groups/bulk_create", Role: RoleAdmin},
		{Path: "/groups", Methods: []string{http.MethodDelete}, Role: RoleAdmin},
		{Path: "/exports", Role: RoleViewer},
		{Path: "/sites", Methods: readMethods, Role: RoleViewer},
		{Path: "/sites", Role: RoleOperator},
		{Path: "/groups", Methods: readMethods, Role: RoleViewer},
		{Path: "/groups", Role: RoleOperator},
	}
}

// Policy maps requests to the role they require. The first matching rule wins.
type Policy struct {
	exempt map[string]struct{}
	rules  []Rule
}

// NewPolicy builds a policy. Exempt paths skip authentication entirely.
func NewPolicy(rules []Rule, exempt ...string) Policy {
	set := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		set[path] = struct{}{}
	}
	return Policy{exempt: set, rules: rules}
}

// NewDefaultPolicy is NewPolicy with DefaultRules.
func NewDefaultPolicy(exempt ...string) Policy {
	return NewPolicy(DefaultRules(), exempt...)
}

// IsExempt reports whether r skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	_, ok := p.exempt[r.URL.Path]
	return ok
}

// RequiredRole returns the role r needs; ok is false when no rule applies.
// The middleware still demands a valid token for unmatched paths.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	for _, rule := range p.rules {
		if rule.matches(r.Method, path) {
			return rule.Role, true
		}
	}
	return "", false
}
