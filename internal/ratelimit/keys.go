package ratelimit

import "strings"

// KeyFunc derives the client dimension of a counter key from a request.
// The policy prefixes the result with its own id and the window index,
// so unrelated policies can never collide.
type KeyFunc func(req *Request) string

// KeyByIP partitions counters by client IP. Requests with no resolvable
// IP share a single "unknown" bucket instead of failing the pipeline.
func KeyByIP(req *Request) string {
	return clientIP(req)
}

// KeyByIdentity partitions by authenticated identity and falls back to
// the client IP when no identity is present.
func KeyByIdentity(req *Request) string {
	if id := strings.TrimSpace(req.Identity); id != "" {
		return "id:" + strings.ToLower(id)
	}
	return "ip:" + clientIP(req)
}

// KeyByIPIdentity combines IP and identity, the dimension used by the
// auth policies so a single address cannot retry across accounts.
func KeyByIPIdentity(req *Request) string {
	key := "ip:" + clientIP(req)
	if id := strings.TrimSpace(req.Identity); id != "" {
		key += ":id:" + strings.ToLower(id)
	}
	return key
}

// KeyByPlatform partitions by the platform dimension combined with the
// client IP, used by the platform-proxy policy.
func KeyByPlatform(req *Request) string {
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		platform = "unknown"
	}
	return "platform:" + strings.ToLower(platform) + ":" + clientIP(req)
}

func clientIP(req *Request) string {
	if ip := strings.TrimSpace(req.IP); ip != "" {
		return ip
	}
	return "unknown"
}

// KeyFuncFor maps a config name to a key generator. Unknown names fall
// back to IP keying.
func KeyFuncFor(name string) KeyFunc {
	switch name {
	case "identity":
		return KeyByIdentity
	case "ip_identity":
		return KeyByIPIdentity
	case "platform":
		return KeyByPlatform
	default:
		return KeyByIP
	}
}
