package ratelimit

import "context"

// RouteClass groups routes that share a policy chain.
type RouteClass string

const (
	ClassGeneral  RouteClass = "general"
	ClassAuth     RouteClass = "auth"
	ClassAI       RouteClass = "ai"
	ClassPlatform RouteClass = "platform"
)

// Registry holds an ordered policy chain per route class plus the
// whitelist and plan-tier bypass sets. It is assembled at startup and
// read-only afterwards, so Check needs no locking.
type Registry struct {
	chains    map[RouteClass][]*Policy
	whitelist map[string]struct{}
	bypass    map[string]map[RouteClass]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		chains:    make(map[RouteClass][]*Policy),
		whitelist: make(map[string]struct{}),
		bypass:    make(map[string]map[RouteClass]struct{}),
	}
}

// Register appends policies to a class's chain, evaluated in order.
func (r *Registry) Register(class RouteClass, policies ...*Policy) {
	r.chains[class] = append(r.chains[class], policies...)
}

// Whitelist exempts client IPs from every class.
func (r *Registry) Whitelist(ips ...string) {
	for _, ip := range ips {
		r.whitelist[ip] = struct{}{}
	}
}

// AllowBypass grants a plan tier bypass for specific route classes.
func (r *Registry) AllowBypass(tier string, classes ...RouteClass) {
	set, ok := r.bypass[tier]
	if !ok {
		set = make(map[RouteClass]struct{})
		r.bypass[tier] = set
	}
	for _, class := range classes {
		set[class] = struct{}{}
	}
}

// Policies returns the chain registered for a class.
func (r *Registry) Policies(class RouteClass) []*Policy {
	return r.chains[class]
}

// Check evaluates a request against the class's chain. Whitelisted IPs
// and bypassing plan tiers are allowed without touching any counter.
// Evaluation stops at the first denial; the returned decision is always
// the one from the policy that decided, never a merge.
func (r *Registry) Check(ctx context.Context, req *Request, class RouteClass) Decision {
	if _, ok := r.whitelist[req.IP]; ok {
		return Decision{Allowed: true, Bypassed: true}
	}

	if req.PlanTier != "" {
		if classes, ok := r.bypass[req.PlanTier]; ok {
			if _, ok := classes[class]; ok {
				return Decision{Allowed: true, Bypassed: true}
			}
		}
	}

	chain := r.chains[class]
	if len(chain) == 0 {
		return Decision{Allowed: true}
	}

	var last Decision
	for _, p := range chain {
		last = p.Apply(ctx, req)
		if !last.Allowed {
			return last
		}
	}

	return last
}
