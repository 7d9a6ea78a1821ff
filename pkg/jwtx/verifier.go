package jwtx

import (
	"errors"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
// Only the development backend verifies signatures; the session engine
// trusts the server for that.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// EdDSAAdapter a Verifier wrapper for EdDSA.
type EdDSAAdapter struct{ *EdDSAVerifier }

func (a EdDSAAdapter) Verify(token string) (Claims, error) {
	c, err := a.EdDSAVerifier.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	return *c, nil
}

// NewCommonEdDSA returns a Verifier for tokens minted by signer.
func NewCommonEdDSA(signer *EdDSASigner, issuer string) Verifier {
	return EdDSAAdapter{NewVerifierEdDSA(signer.PublicKey(), issuer)}
}
