package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

func TestLoadMasterKey(t *testing.T) {
	log := slogx.Discard()

	t.Run("explicit key wins", func(t *testing.T) {
		key, err := LoadMasterKey(Config{MasterKey: "0123456789abcdef", MasterKeyFile: "ignored"}, log)
		require.NoError(t, err)
		require.Equal(t, []byte("0123456789abcdef"), key)
	})

	t.Run("file is created once", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")

		first, err := LoadMasterKey(Config{MasterKeyFile: path}, log)
		require.NoError(t, err)
		require.Len(t, first, masterKeySize)

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, err := LoadMasterKey(Config{MasterKeyFile: path}, log)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("garbage file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("***"), 0o600))

		_, err := LoadMasterKey(Config{MasterKeyFile: path}, log)
		require.ErrorContains(t, err, "decode master key file")
	})

	t.Run("short file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("c2hvcnQ="), 0o600))

		_, err := LoadMasterKey(Config{MasterKeyFile: path}, log)
		require.ErrorContains(t, err, "need 16")
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadMasterKey(Config{}, log)
		require.Error(t, err)
	})
}
