package instagram

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}

// UserId is the provider's user id. The provider has been known to send it
// as either a JSON string or a JSON number; both decode into the same
// string form without any loss of precision.
type UserId string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *UserId) UnmarshalJSON(b []byte) error {
	const op = "UserId.UnmarshalJSON"
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		*id = UserId(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("%s: user id is neither a string or a number: %w", op, err)
		}
		*id = UserId(n.String())
		return nil
	}
}

// User is the user object embedded in the provider's token response.
type User struct {
	Id             UserId `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	ProfilePicture string `json:"profile_picture"`
}

// TokenResponse is the provider's response to a successful authorization
// code exchange. It's parsed once and never persisted.
type TokenResponse struct {
	AccessToken AccessToken `json:"access_token"`
	User        User        `json:"user"`
}

// parseTokenResponse parses the body of a token response. Absent fields are
// left empty; only a body which isn't a JSON object (or has mistyped
// fields) is an error.
func parseTokenResponse(body []byte) (*TokenResponse, error) {
	const op = "parseTokenResponse"
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%s: unable to parse token response: %w: %w", op, ErrInvalidTokenResponse, err)
	}
	return &tr, nil
}

// StaticTokenSource returns a TokenSource that always returns the same token,
// which is useful for calling the provider's API on the user's behalf.
func (t *TokenResponse) StaticTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.AccessToken),
		TokenType:   "Bearer",
	})
}
