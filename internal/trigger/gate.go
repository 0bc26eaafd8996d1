// Package trigger guards the scheduled-job endpoints against callers that
// are not the configured clock.
package trigger

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Authorized means the caller presented the configured secret.
	Authorized Decision = iota
	// Unauthorized means the secret was missing or wrong.
	Unauthorized
	// Misconfigured means no secret is configured server-side. The gate
	// fails closed, but the reason is kept distinct so operators can tell a
	// bad caller from a broken deployment.
	Misconfigured
)

// String renders the decision for logs and response bodies.
func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	case Misconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// QueryParam is the request parameter accepted as an alternative to the
// Authorization header, for clocks that cannot set headers.
const QueryParam = "key"

// Gate validates that an invocation is a legitimate scheduled trigger. It
// must run before any read or delivery side effect.
type Gate struct {
	secret string
}

// NewGate builds a gate around the shared trigger secret.
func NewGate(secret string) *Gate {
	return &Gate{secret: strings.TrimSpace(secret)}
}

// Authorize checks the request credential. The secret may arrive as a bearer
// token or as the "key" query parameter.
func (g *Gate) Authorize(r *http.Request) Decision {
	if g == nil || g.secret == "" {
		return Misconfigured
	}

	if candidate := bearerToken(r.Header.Get("Authorization")); candidate != "" {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(g.secret)) == 1 {
			return Authorized
		}
		return Unauthorized
	}

	if candidate := r.URL.Query().Get(QueryParam); candidate != "" {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(g.secret)) == 1 {
			return Authorized
		}
	}

	return Unauthorized
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
