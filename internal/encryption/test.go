package encryption

import (
	"bytes"
	"fmt"
	"slices"

	"gallery-go/internal/session"
)

// testHeader is prepended by TestSealer so sealed output differs from the
// plaintext while staying deterministic.
var testHeader = []byte("GALENC\x00\x00")

// TestSealer is a deterministic, reversible sealer for tests. It performs
// no cryptography.
type TestSealer struct{}

var _ session.Sealer = TestSealer{}

func (TestSealer) Seal(plaintext []byte) ([]byte, error) {
	return append(slices.Clone(testHeader), plaintext...), nil
}

func (TestSealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, testHeader) {
		return nil, fmt.Errorf("invalid test seal header")
	}
	return slices.Clone(sealed[len(testHeader):]), nil
}
