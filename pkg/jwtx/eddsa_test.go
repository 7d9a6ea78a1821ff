package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "collab-auth"

func newTestSigner(t *testing.T, kid string) *jwtx.EdDSASigner {
	t.Helper()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newTestSigner(t, "test-key-eddsa")
	require.Equal(t, "test-key-eddsa", signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims("42", "alice", 5, 5*time.Minute, exampleIssuer, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.True(t, jwtx.IsStructurallyValid(token))

	header, err := jwt.NewParser().DecodeSegment(strings.Split(token, ".")[0])
	require.NoError(t, err)
	require.Contains(t, string(header), `"kid":"test-key-eddsa"`)
	require.Contains(t, string(header), `"alg":"EdDSA"`)

	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), exampleIssuer)
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, "alice", parsed.Username)
	require.Equal(t, int64(5), parsed.DepartmentID)
	require.NotEmpty(t, parsed.ID) // JTI should be set
}

func TestEdDSAVerifyFailsForWrongIssuer(t *testing.T) {
	signer := newTestSigner(t, "k1")

	claims := jwtx.NewAccessClaims("7", "bob", 0, time.Minute, exampleIssuer, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), "wrong-issuer")
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestEdDSAVerifyFailsForOtherKey(t *testing.T) {
	signer1 := newTestSigner(t, "key1")
	signer2 := newTestSigner(t, "key2")

	claims := jwtx.NewAccessClaims("7", "bob", 0, time.Minute, exampleIssuer, time.Now().UTC())
	token, err := signer1.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierEdDSA(signer2.PublicKey(), exampleIssuer)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestEdDSAVerifyFailsForExpiredToken(t *testing.T) {
	signer := newTestSigner(t, "k1")

	past := time.Now().UTC().Add(-time.Hour)
	claims := jwtx.NewAccessClaims("7", "bob", 0, time.Minute, exampleIssuer, past)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierEdDSA(signer.PublicKey(), exampleIssuer)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestEdDSASignerRejectsInvalidKey(t *testing.T) {
	_, err := jwtx.NewSignerEdDSA("test", []byte("not-a-pem-key"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid PEM")
}

func TestEdDSACommonVerifierAdapter(t *testing.T) {
	signer := newTestSigner(t, "test-key")

	claims := jwtx.NewAccessClaims("99", "carol", 3, time.Minute, exampleIssuer, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	var v jwtx.Verifier = jwtx.NewCommonEdDSA(signer, exampleIssuer)
	parsed, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "99", parsed.Subject)

	_, err = v.Verify("garbage")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
