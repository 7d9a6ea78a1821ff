package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
)

const masterKeySize = 32

// LoadMasterKey returns the secret that seals tokens at rest. An explicit
// MasterKey wins; otherwise the key file is read, or created on first use.
func LoadMasterKey(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.MasterKey != "" {
		return []byte(cfg.MasterKey), nil
	}
	if cfg.MasterKeyFile == "" {
		return nil, errors.New("no master key configured")
	}

	data, err := os.ReadFile(cfg.MasterKeyFile)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode master key file: %w", err)
		}
		if len(key) < cryptox.MinSecretSize {
			return nil, fmt.Errorf("master key file holds %d bytes, need %d", len(key), cryptox.MinSecretSize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read master key file: %w", err)
	}

	key, err := cryptox.GenerateSecret(masterKeySize)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(cfg.MasterKeyFile, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write master key file: %w", err)
	}

	logger.Info("generated master key", "path", cfg.MasterKeyFile)
	return key, nil
}
