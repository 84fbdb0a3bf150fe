package instagram

import (
	"fmt"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// encryptedStateCodec protects Properties as a compact JWE using direct
// encryption with A256GCM.
type encryptedStateCodec struct {
	key       []byte
	encrypter jose.Encrypter
}

// ensure that encryptedStateCodec implements the StateCodec interface
var _ StateCodec = (*encryptedStateCodec)(nil)

// NewEncryptedStateCodec creates a StateCodec which encrypts and
// authenticates the state, so neither the return URL nor the anti-forgery
// marker are readable by the user-agent or the provider. The key must be
// StateKeySize bytes.
func NewEncryptedStateCodec(key []byte) (StateCodec, error) {
	const op = "NewEncryptedStateCodec"
	if err := validateStateKey(op, key); err != nil {
		return nil, err
	}
	k := make([]byte, len(key))
	copy(k, key)
	enc, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: k},
		(&jose.EncrypterOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create encrypter: %w", op, err)
	}
	return &encryptedStateCodec{key: k, encrypter: enc}, nil
}

// Protect implements the StateCodec.Protect() interface function.
func (c *encryptedStateCodec) Protect(p *Properties) (string, error) {
	const op = "encryptedStateCodec.Protect"
	if p == nil {
		return "", fmt.Errorf("%s: properties are nil: %w", op, ErrNilParameter)
	}
	claims := jwt.Claims{}
	if !p.IssuedAt.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(p.IssuedAt)
	}
	if !p.ExpiresAt.IsZero() {
		claims.Expiry = jwt.NewNumericDate(p.ExpiresAt)
	}
	private := struct {
		Props stateClaims `json:"props"`
	}{newStateClaims(p)}

	raw, err := jwt.Encrypted(c.encrypter).Claims(claims).Claims(private).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("%s: unable to encrypt state: %w", op, err)
	}
	return raw, nil
}

// Unprotect implements the StateCodec.Unprotect() interface function.
func (c *encryptedStateCodec) Unprotect(state string) (*Properties, error) {
	const op = "encryptedStateCodec.Unprotect"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidState)
	}
	tok, err := jwt.ParseEncrypted(state)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse state: %w: %w", op, ErrInvalidState, err)
	}
	if len(tok.Headers) != 1 || tok.Headers[0].Algorithm != string(jose.DIRECT) {
		return nil, fmt.Errorf("%s: unexpected key management algorithm: %w", op, ErrInvalidState)
	}
	var claims jwt.Claims
	var private struct {
		Props stateClaims `json:"props"`
	}
	if err := tok.Claims(c.key, &claims, &private); err != nil {
		return nil, fmt.Errorf("%s: unable to decrypt state: %w: %w", op, ErrInvalidState, err)
	}
	return private.Props.properties(claims.IssuedAt.Time(), claims.Expiry.Time()), nil
}
