package instagram

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
)

// StateKeySize is the size, in bytes, of the keys used by the state codecs.
const StateKeySize = 32

// StateCodec protects a flow's Properties into an opaque value which can
// travel through the provider as the oauth "state" parameter, and recovers
// them from it. Implementations must authenticate the value: Unprotect must
// fail for anything Protect didn't produce with the same key.
//
// Implementations must be concurrently safe, since the codec is shared by
// every request a Handler serves.
type StateCodec interface {
	// Protect the properties.
	Protect(p *Properties) (string, error)

	// Unprotect the state. It returns an error wrapping ErrInvalidState
	// when the state cannot be recovered. Expiration isn't checked by
	// codecs (see Properties.IsExpired).
	Unprotect(state string) (*Properties, error)
}

// NewStateKey generates a random key suitable for NewEncryptedStateCodec and
// NewSignedStateCodec. A generated key is only good for the life of the
// process; use a configured key when the flow is served by more than one
// process.
func NewStateKey() ([]byte, error) {
	const op = "NewStateKey"
	k, err := uuid.GenerateRandomBytes(StateKeySize)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate state key: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	return k, nil
}

// stateClaims are the Properties fields carried as a private claim by the
// codecs. IssuedAt and ExpiresAt use the tokens' registered claims.
type stateClaims struct {
	RedirectURI  string            `json:"ru,omitempty"`
	Items        map[string]string `json:"it,omitempty"`
	IsPersistent bool              `json:"pe,omitempty"`
}

func newStateClaims(p *Properties) stateClaims {
	return stateClaims{
		RedirectURI:  p.RedirectURI,
		Items:        p.Items,
		IsPersistent: p.IsPersistent,
	}
}

func (c stateClaims) properties(issuedAt, expiresAt time.Time) *Properties {
	p := NewProperties(c.RedirectURI)
	for k, v := range c.Items {
		p.Items[k] = v
	}
	p.IsPersistent = c.IsPersistent
	p.IssuedAt = issuedAt
	p.ExpiresAt = expiresAt
	return p
}

func validateStateKey(op string, key []byte) error {
	if len(key) != StateKeySize {
		return fmt.Errorf("%s: state key must be %d bytes: %w", op, StateKeySize, ErrInvalidParameter)
	}
	return nil
}
