// Package secrets resolves tracker credentials. The encryption mechanism is
// an opaque collaborator: the engine only sees a Cipher and never a scheme.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/signalbox/internal/store"
)

// ErrNotFound is returned when a credential name resolves to nothing.
var ErrNotFound = errors.New("secrets: credential not found")

// Cipher encrypts tokens for storage and decrypts them at check time.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Passthrough is the default Cipher. Real encryption is supplied by the
// surrounding application; the engine works the same either way.
type Passthrough struct{}

func (Passthrough) Encrypt(plaintext string) (string, error) { return plaintext, nil }
func (Passthrough) Decrypt(blob string) (string, error)      { return blob, nil }

// Resolver turns a credential name into its plaintext secret.
type Resolver func(ctx context.Context, name string) (string, error)

// NewResolver builds a Resolver over the credential store and a cipher.
func NewResolver(st *store.Store, cipher Cipher) Resolver {
	return func(ctx context.Context, name string) (string, error) {
		cred, err := st.GetCredential(name)
		if err != nil {
			if st.IsNotFound(err) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return "", fmt.Errorf("secrets: load credential %q: %w", name, err)
		}
		token, err := cipher.Decrypt(cred.Token)
		if err != nil {
			return "", fmt.Errorf("secrets: decrypt credential %q: %w", name, err)
		}
		return token, nil
	}
}

// Mask renders a token for listings: first and last four characters with the
// middle elided. Short tokens are fully masked.
func Mask(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
