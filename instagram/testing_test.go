package instagram

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

// testCodec returns an encrypted state codec with a random key.
func testCodec(t *testing.T) StateCodec {
	t.Helper()
	require := require.New(t)
	key, err := NewStateKey()
	require.NoError(err)
	c, err := NewEncryptedStateCodec(key)
	require.NoError(err)
	return c
}

// testNewConfig creates a config for the TestProvider (tp), whose client
// credentials are set to the config's.
func testNewConfig(t *testing.T, tp *TestProvider, opt ...Option) *Config {
	t.Helper()
	require := require.New(t)
	const (
		clientId     = "X"
		clientSecret = "test-secret"
	)
	tp.SetClientCreds(clientId, clientSecret)
	opts := append([]Option{
		WithEndpoints(tp.AuthURL(), tp.TokenURL()),
		WithProviderCA(tp.CACert()),
	}, opt...)
	c, err := NewConfig(clientId, clientSecret, testCodec(t), opts...)
	require.NoError(err)
	return c
}

// testLogger returns a logger which writes to the returned buffer.
func testLogger(t *testing.T) (hclog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return hclog.New(&hclog.LoggerOptions{
		Name:   t.Name(),
		Output: &buf,
		Level:  hclog.Trace,
	}), &buf
}
