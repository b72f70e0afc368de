// Package credentials extracts bearer-token claims from inbound requests
// for observability (logging, RequestExtra.AuthInfo) without validating
// them. The proxy passes credentials through to the target verbatim; it
// never enforces signatures, audience, or scope (spec.md Non-goals).
package credentials

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HeaderAuthorization is the standard HTTP header carrying bearer tokens.
const HeaderAuthorization = "Authorization"

// BearerScheme is the RFC 6750 authentication scheme this package extracts.
const BearerScheme = "Bearer"

// ErrMissingToken indicates the Authorization header was absent or empty.
var ErrMissingToken = errMissing{}

type errMissing struct{}

func (errMissing) Error() string { return "missing bearer token" }

// ErrMalformedHeader indicates the Authorization header was present but
// not in "Bearer <token>" form.
var ErrMalformedHeader = errMalformed{}

type errMalformed struct{}

func (errMalformed) Error() string { return "malformed authorization header" }

// Info is the opaque, unverified identity information attached to
// RequestExtra.AuthInfo. Every field is read directly from the token's
// claims without any cryptographic check; nothing here should gate access.
type Info struct {
	RawToken string
	Subject  string
	Issuer   string
	Audience []string
	Scopes   []string
	ExpiresAt time.Time
}

// ExtractBearerToken reads the raw bearer token from an HTTP request's
// Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	return ParseAuthorizationHeader(r.Header.Get(HeaderAuthorization))
}

// ParseAuthorizationHeader splits an "Authorization: Bearer <token>" header
// value and returns the token.
func ParseAuthorizationHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", ErrMalformedHeader
	}
	if !strings.EqualFold(parts[0], BearerScheme) {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// FromRequest extracts and observes the bearer token carried by an inbound
// HTTP request's Authorization header, for transports to attach directly to
// RequestExtra.AuthInfo. Returns nil, nil when the header is absent — no
// token present is not itself an error at this layer (spec.md Non-goals:
// credentials are passed through, never required).
func FromRequest(r *http.Request) (*Info, error) {
	token, err := ExtractBearerToken(r)
	if err != nil {
		if err == ErrMissingToken {
			return nil, nil
		}
		return nil, err
	}
	return Observe(token)
}

// Observe parses a bearer token's claims without verifying its signature,
// expiration, or audience. The result is informational only: it is handed
// to hooks via RequestExtra.AuthInfo and logged, never used to grant or
// deny access (spec.md Non-goals: "authentication of downstream clients
// beyond passing credentials through").
func Observe(rawToken string) (*Info, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(rawToken, claims); err != nil {
		return &Info{RawToken: rawToken}, err
	}

	info := &Info{RawToken: rawToken}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}
	if aud, err := claims.GetAudience(); err == nil {
		info.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		info.Scopes = strings.Fields(scope)
	}
	return info, nil
}
