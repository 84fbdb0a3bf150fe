package instagram

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tk := AccessToken("super secret token")
	assert.Equal(RedactedAccessToken, tk.String())
	assert.Equal(RedactedAccessToken, fmt.Sprintf("%v", tk))
}

func TestAccessToken_MarshalJSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	got, err := json.Marshal(&TokenResponse{AccessToken: "super secret token"})
	require.NoError(err)
	assert.Contains(string(got), RedactedAccessToken)
	assert.NotContains(string(got), "super secret token")
}

func Test_parseTokenResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		body      string
		want      *TokenResponse
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "string-id",
			body: `{"access_token":"T","user":{"id":"1","username":"bob","full_name":"Bob","profile_picture":"url"}}`,
			want: &TokenResponse{AccessToken: "T", User: User{Id: "1", Username: "bob", FullName: "Bob", ProfilePicture: "url"}},
		},
		{
			name: "numeric-id",
			body: `{"access_token":"T","user":{"id":17841405793187218,"username":"bob"}}`,
			want: &TokenResponse{AccessToken: "T", User: User{Id: "17841405793187218", Username: "bob"}},
		},
		{
			name: "null-id",
			body: `{"access_token":"T","user":{"id":null}}`,
			want: &TokenResponse{AccessToken: "T"},
		},
		{
			name: "missing-fields",
			body: `{"access_token":"T"}`,
			want: &TokenResponse{AccessToken: "T"},
		},
		{
			name: "extra-fields",
			body: `{"access_token":"T","user":{"id":"1","bio":"hi"},"expires_in":3600}`,
			want: &TokenResponse{AccessToken: "T", User: User{Id: "1"}},
		},
		{
			name:      "not-json",
			body:      `access_token=T`,
			wantErr:   true,
			wantIsErr: ErrInvalidTokenResponse,
		},
		{
			name:      "bool-id",
			body:      `{"access_token":"T","user":{"id":true}}`,
			wantErr:   true,
			wantIsErr: ErrInvalidTokenResponse,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := parseTokenResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestTokenResponse_StaticTokenSource(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tr := &TokenResponse{AccessToken: "T"}
	tk, err := tr.StaticTokenSource().Token()
	require.NoError(err)
	assert.Equal("T", tk.AccessToken)
	assert.Equal("Bearer", tk.Type())
}
