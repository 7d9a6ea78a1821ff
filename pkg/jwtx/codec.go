package jwtx

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is the decoded, unverified body of a bearer token. Only the
// registered claims the session cares about are lifted out; everything else
// stays in Claims.
type Payload struct {
	Subject   string
	IssuedAt  int64 // epoch seconds, 0 when absent
	ExpiresAt int64 // epoch seconds, 0 when absent
	Claims    map[string]any
}

// HasExpiry reports whether the token carried a usable exp claim.
func (p Payload) HasExpiry() bool { return p.ExpiresAt != 0 }

// segmentParser is only used for its base64url segment decoding. Padding is
// tolerated because some issuers still emit it.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// splitSections returns the three dot-separated sections of a compact token.
func splitSections(token string) ([]string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	return parts, true
}

// IsStructurallyValid reports whether token has exactly three dot-separated
// sections and each of them decodes as base64url on its own. It says nothing
// about the signature; that is the server's job.
func IsStructurallyValid(token string) bool {
	parts, ok := splitSections(token)
	if !ok {
		return false
	}

	for _, part := range parts {
		if _, err := segmentParser.DecodeSegment(part); err != nil {
			return false
		}
	}

	return true
}

// Decode returns the token payload without verifying it. Wrong section count,
// bad base64 or a payload that is not a JSON object all yield false.
func Decode(token string) (Payload, bool) {
	parts, ok := splitSections(token)
	if !ok {
		return Payload{}, false
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Payload{}, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return Payload{}, false
	}

	p := Payload{Claims: map[string]any(claims)}

	// A claim of the wrong type is treated as absent, which makes the token
	// count as expired further up.
	if sub, err := claims.GetSubject(); err == nil {
		p.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		p.IssuedAt = iat.Unix()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Unix()
	}

	return p, true
}

// IsExpired reports whether token is expired right now. Anything that cannot
// be decoded, or carries no exp claim, is expired.
func IsExpired(token string) bool {
	return IsExpiredAt(token, time.Now())
}

// IsExpiredAt is IsExpired against an explicit clock.
func IsExpiredAt(token string, now time.Time) bool {
	p, ok := Decode(token)
	if !ok || !p.HasExpiry() {
		return true
	}
	return p.ExpiresAt < now.Unix()
}

// TimeUntilExpiry returns the whole minutes left before token expires. The
// value goes negative once the token is past its expiry. ok is false when the
// token has no decodable exp claim.
func TimeUntilExpiry(token string) (minutes int, ok bool) {
	return TimeUntilExpiryAt(token, time.Now())
}

// TimeUntilExpiryAt is TimeUntilExpiry against an explicit clock.
func TimeUntilExpiryAt(token string, now time.Time) (minutes int, ok bool) {
	p, decoded := Decode(token)
	if !decoded || !p.HasExpiry() {
		return 0, false
	}

	remaining := float64(p.ExpiresAt-now.Unix()) / 60
	return int(math.Floor(remaining)), true
}

// IsUsable is the local acceptance rule for a held token: structurally valid
// and not expired once leeway is taken off the expiry.
func IsUsable(token string, now time.Time, leeway time.Duration) bool {
	if token == "" || !IsStructurallyValid(token) {
		return false
	}
	return !IsExpiredAt(token, now.Add(leeway))
}
