package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"

	"gallery-go/internal/session"
)

// AgeSealer implements session.Sealer using filippo.io/age with an X25519
// identity. The identity is generated on first use and kept in a file
// readable only by the owner, so a stored credential is useless without it.
type AgeSealer struct {
	identityPath string

	mu       sync.Mutex
	identity *age.X25519Identity
}

var _ session.Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates a sealer whose identity lives at identityPath.
func NewAgeSealer(identityPath string) *AgeSealer {
	return &AgeSealer{identityPath: identityPath}
}

// Seal encrypts plaintext to the sealer's identity, generating the identity
// if it does not exist yet.
func (s *AgeSealer) Seal(plaintext []byte) ([]byte, error) {
	identity, err := s.loadIdentity(true)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := age.Encrypt(&out, identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return out.Bytes(), nil
}

// Open decrypts data produced by Seal.
func (s *AgeSealer) Open(sealed []byte) ([]byte, error) {
	identity, err := s.loadIdentity(false)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, fmt.Errorf("creating decrypted reader: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting data: %w", err)
	}
	return plaintext, nil
}

// IsConfigured reports whether the identity file exists.
func (s *AgeSealer) IsConfigured() bool {
	_, err := os.Stat(s.identityPath)
	return err == nil
}

// loadIdentity reads the identity from disk, creating it when create is set
// and the file is missing.
func (s *AgeSealer) loadIdentity(create bool) (*age.X25519Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return s.identity, nil
	}

	data, err := os.ReadFile(s.identityPath)
	switch {
	case err == nil:
		identities, err := age.ParseIdentities(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
		if len(identities) == 0 {
			return nil, fmt.Errorf("no identities found in %s", s.identityPath)
		}
		identity, ok := identities[0].(*age.X25519Identity)
		if !ok {
			return nil, fmt.Errorf("identity in %s is not an X25519 identity", s.identityPath)
		}
		s.identity = identity
		return identity, nil
	case errors.Is(err, fs.ErrNotExist) && create:
		identity, err := s.generateLocked()
		if err != nil {
			return nil, err
		}
		s.identity = identity
		return identity, nil
	default:
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
}

func (s *AgeSealer) generateLocked() (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	f, err := os.OpenFile(s.identityPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# public key: %s\n%s\n", identity.Recipient(), identity); err != nil {
		return nil, fmt.Errorf("writing identity: %w", err)
	}
	return identity, nil
}
