package cryptox_test

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateEd25519Key(t *testing.T) {
	pemBytes, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.NotEmpty(t, pemBytes)

	// Verify it's valid PEM
	block, _ := pem.Decode(pemBytes)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	// Verify it's a valid Ed25519 key in PKCS8 format
	keyInterface, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	require.NotNil(t, keyInterface)

	key, ok := keyInterface.(ed25519.PrivateKey)
	require.True(t, ok)
	require.Equal(t, ed25519.PrivateKeySize, len(key))
}

func TestGenerateEd25519KeyUnique(t *testing.T) {
	a, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	b, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestLoadOrGenerateEd25519Key(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	_, err := cryptox.LoadOrGenerateEd25519Key(path, false)
	require.Error(t, err)

	first, err := cryptox.LoadOrGenerateEd25519Key(path, true)
	require.NoError(t, err)

	second, err := cryptox.LoadOrGenerateEd25519Key(path, false)
	require.NoError(t, err)
	require.Equal(t, first, second)

	ephemeral, err := cryptox.LoadOrGenerateEd25519Key("", false)
	require.NoError(t, err)
	require.NotEqual(t, first, ephemeral)
}

func TestParseEd25519Key(t *testing.T) {
	pemBytes, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	key, err := cryptox.ParseEd25519Key(pemBytes)
	require.NoError(t, err)
	require.Len(t, key, ed25519.PrivateKeySize)

	_, err = cryptox.ParseEd25519Key([]byte("not-a-pem-key"))
	require.ErrorContains(t, err, "invalid PEM")

	other := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}})
	_, err = cryptox.ParseEd25519Key(other)
	require.ErrorContains(t, err, "expected PRIVATE KEY")
}
