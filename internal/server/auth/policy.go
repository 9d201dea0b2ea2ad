package auth

import (
	"errors"
	"fmt"

	"github.com/yndnr/statichost/internal/server/config"
)

// Decision is the outcome of Policy.Authorize.
type Decision int

const (
	// Allow lets the request through.
	Allow Decision = iota
	// Unauthenticated means an identity is required (401).
	Unauthenticated
	// Forbidden means the identity is not allowed (403).
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// PolicyConfig configures a Policy.
type PolicyConfig struct {
	Fallback       string
	AnonymousPaths []string
	RequiredRoles  []string
}

// Policy is the authorization policy.
type Policy struct {
	allowAll      bool
	anonymous     map[string]struct{}
	requiredRoles []string
}

// NewPolicy creates a Policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	p := &Policy{
		anonymous:     make(map[string]struct{}, len(cfg.AnonymousPaths)),
		requiredRoles: append([]string(nil), cfg.RequiredRoles...),
	}
	switch cfg.Fallback {
	case config.PolicyRequireAuthenticated, "":
	case config.PolicyAllowAll:
		p.allowAll = true
	default:
		return nil, fmt.Errorf("auth: unknown fallback policy %q", cfg.Fallback)
	}
	for _, path := range cfg.AnonymousPaths {
		p.anonymous[path] = struct{}{}
	}
	return p, nil
}

// Exempt reports whether path bypasses authorization. Matching is exact.
func (p *Policy) Exempt(path string) bool {
	_, ok := p.anonymous[path]
	return ok
}

// Authorize decides whether id may access path. A nil id is anonymous.
func (p *Policy) Authorize(path string, id *Identity) Decision {
	if p.Exempt(path) || p.allowAll {
		return Allow
	}
	if id == nil {
		return Unauthenticated
	}
	if len(p.requiredRoles) > 0 && !id.HasAnyRole(p.requiredRoles...) {
		return Forbidden
	}
	return Allow
}

// FromConfig builds the authenticator chain and policy for cfg. The
// client certificate authenticator comes first.
func FromConfig(cfg config.AuthSection) (Chain, *Policy, error) {
	var chain Chain
	if cfg.ClientCert.Enabled {
		chain = append(chain, ClientCert{})
	}
	if cfg.Bearer.Enabled() {
		b, err := NewBearer(BearerConfig{
			Secret:   []byte(cfg.Bearer.HMACSecret),
			Issuer:   cfg.Bearer.Issuer,
			Audience: cfg.Bearer.Audience,
		})
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, b)
	}

	policy, err := NewPolicy(PolicyConfig{
		Fallback:       cfg.FallbackPolicy,
		AnonymousPaths: cfg.AnonymousPaths,
		RequiredRoles:  cfg.RequiredRoles,
	})
	if err != nil {
		return nil, nil, err
	}
	if !policy.allowAll && len(chain) == 0 {
		return nil, nil, errors.New("auth: require_authenticated needs at least one authenticator")
	}
	return chain, policy, nil
}
