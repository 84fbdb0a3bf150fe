package instagram

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signedStateClaims is the claim set of a signed state.
type signedStateClaims struct {
	Props stateClaims `json:"props"`
	jwt.RegisteredClaims
}

// signedStateCodec protects Properties as an HS256 signed JWT. The state is
// authenticated but readable by anyone who sees it.
type signedStateCodec struct {
	key    []byte
	parser *jwt.Parser
}

// ensure that signedStateCodec implements the StateCodec interface
var _ StateCodec = (*signedStateCodec)(nil)

// NewSignedStateCodec creates a StateCodec which signs the state with
// HMAC-SHA256. The key must be StateKeySize bytes.
func NewSignedStateCodec(key []byte) (StateCodec, error) {
	const op = "NewSignedStateCodec"
	if err := validateStateKey(op, key); err != nil {
		return nil, err
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &signedStateCodec{
		key: k,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			// expiration is the handler's call, see Properties.IsExpired
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Protect implements the StateCodec.Protect() interface function.
func (c *signedStateCodec) Protect(p *Properties) (string, error) {
	const op = "signedStateCodec.Protect"
	if p == nil {
		return "", fmt.Errorf("%s: properties are nil: %w", op, ErrNilParameter)
	}
	claims := signedStateClaims{Props: newStateClaims(p)}
	if !p.IssuedAt.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(p.IssuedAt)
	}
	if !p.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(p.ExpiresAt)
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("%s: unable to sign state: %w", op, err)
	}
	return raw, nil
}

// Unprotect implements the StateCodec.Unprotect() interface function.
func (c *signedStateCodec) Unprotect(state string) (*Properties, error) {
	const op = "signedStateCodec.Unprotect"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidState)
	}
	var claims signedStateClaims
	tok, err := c.parser.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: unable to verify state: %w: %w", op, ErrInvalidState, err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("%s: state signature is invalid: %w", op, ErrInvalidState)
	}
	return claims.Props.properties(numericTime(claims.IssuedAt), numericTime(claims.ExpiresAt)), nil
}

func numericTime(n *jwt.NumericDate) time.Time {
	if n == nil {
		return time.Time{}
	}
	return n.Time
}
