package encryption

import (
	"fmt"

	"gallery-go/internal/config"
	"gallery-go/internal/session"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.EncryptionConfig) (session.Sealer, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" {
			return nil, fmt.Errorf("age encryption requires identity_path to be set")
		}
		return NewAgeSealer(cfg.IdentityPath), nil
	case "test":
		return TestSealer{}, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
