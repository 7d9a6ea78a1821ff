package jwtx

// Signer mints access tokens for the development backend.
type Signer interface {
	KID() string
	Sign(Claims) (string, error)
}

// NewSignerEdDSA creates an EdDSA signer from a PKCS8 PEM private key.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	return newEdDSASigner(kid, pemKey)
}
