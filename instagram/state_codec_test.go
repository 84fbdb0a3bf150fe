package instagram

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateKey(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	k1, err := NewStateKey()
	require.NoError(err)
	assert.Len(k1, StateKeySize)
	k2, err := NewStateKey()
	require.NoError(err)
	assert.NotEqual(k1, k2)
}

func TestStateCodecs(t *testing.T) {
	t.Parallel()
	key, err := NewStateKey()
	require.NoError(t, err)
	otherKey, err := NewStateKey()
	require.NoError(t, err)

	codecs := map[string]func([]byte) (StateCodec, error){
		"encrypted": NewEncryptedStateCodec,
		"signed":    NewSignedStateCodec,
	}
	for name, newCodec := range codecs {
		name, newCodec := name, newCodec
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			codec, err := newCodec(key)
			require.NoError(t, err)
			other, err := newCodec(otherKey)
			require.NoError(t, err)

			issued := time.Now().Truncate(time.Second)
			props := NewProperties("/account?tab=1")
			props.SetItem(xsrfKey, "marker")
			props.SetItem("returnTo", "x")
			props.IsPersistent = true
			props.IssuedAt = issued
			props.ExpiresAt = issued.Add(DefaultStateTTL)

			t.Run("round-trip", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				state, err := codec.Protect(props)
				require.NoError(err)
				assert.NotEmpty(state)

				got, err := codec.Unprotect(state)
				require.NoError(err)
				assert.Equal(props.RedirectURI, got.RedirectURI)
				assert.Equal(props.Items, got.Items)
				assert.True(got.IsPersistent)
				assert.True(props.IssuedAt.Equal(got.IssuedAt))
				assert.True(props.ExpiresAt.Equal(got.ExpiresAt))
			})
			t.Run("no-times", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				state, err := codec.Protect(NewProperties("/"))
				require.NoError(err)
				got, err := codec.Unprotect(state)
				require.NoError(err)
				assert.True(got.IssuedAt.IsZero())
				assert.True(got.ExpiresAt.IsZero())
				assert.NotNil(got.Items)
			})
			t.Run("expired-state-still-decodes", func(t *testing.T) {
				assert, require := assert.New(t), require.New(t)
				p := props.Clone()
				p.ExpiresAt = issued.Add(-time.Hour)
				state, err := codec.Protect(p)
				require.NoError(err)
				got, err := codec.Unprotect(state)
				require.NoError(err)
				assert.True(got.IsExpired())
			})
			t.Run("nil-properties", func(t *testing.T) {
				_, err := codec.Protect(nil)
				assert.ErrorIs(t, err, ErrNilParameter)
			})
			t.Run("wrong-key", func(t *testing.T) {
				require := require.New(t)
				state, err := other.Protect(props)
				require.NoError(err)
				_, err = codec.Unprotect(state)
				require.Error(err)
				assert.ErrorIs(t, err, ErrInvalidState)
			})
			t.Run("tampered", func(t *testing.T) {
				require := require.New(t)
				state, err := codec.Protect(props)
				require.NoError(err)
				parts := strings.Split(state, ".")
				last := parts[len(parts)-1]
				flipped := "A"
				if last[0] == 'A' {
					flipped = "B"
				}
				parts[len(parts)-1] = flipped + last[1:]
				_, err = codec.Unprotect(strings.Join(parts, "."))
				require.Error(err)
				assert.ErrorIs(t, err, ErrInvalidState)
			})
			t.Run("garbage", func(t *testing.T) {
				for _, s := range []string{"", "S1", "a.b.c", "a.b.c.d.e"} {
					_, err := codec.Unprotect(s)
					assert.ErrorIsf(t, err, ErrInvalidState, "state %q", s)
				}
			})
		})
	}
}

func TestStateCodecs_InvalidKey(t *testing.T) {
	t.Parallel()
	_, err := NewEncryptedStateCodec([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewSignedStateCodec(nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestEncryptedStateCodec_Opaque(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	key, err := NewStateKey()
	require.NoError(err)
	codec, err := NewEncryptedStateCodec(key)
	require.NoError(err)

	props := NewProperties("/very-identifiable-return-path")
	state, err := codec.Protect(props)
	require.NoError(err)
	assert.Len(strings.Split(state, "."), 5)
	assert.NotContains(state, "very-identifiable")
}
