package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// CertificateValidator is an optional hook used to validate the TLS
// connection to the provider after the standard chain and hostname checks
// have passed. Returning an error aborts the handshake. It's the hook point
// for certificate pinning.
type CertificateValidator func(cs tls.ConnectionState) error

// Option defines a functional option for NewClient
type Option func(*clientOptions)

type clientOptions struct {
	withTimeout              time.Duration
	withCertificateValidator CertificateValidator
}

// WithTimeout sets the overall timeout for requests made by the client.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.withTimeout = d
	}
}

// WithCertificateValidator installs a CertificateValidator on the client's
// transport.
func WithCertificateValidator(v CertificateValidator) Option {
	return func(o *clientOptions) {
		o.withCertificateValidator = v
	}
}

// NewClient creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain. The
// client is built on a pooled transport and is meant to be long lived and
// shared across requests.
func NewClient(caPEM string, opt ...Option) (*http.Client, error) {
	var opts clientOptions
	for _, o := range opt {
		o(&opts)
	}
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" || opts.withCertificateValidator != nil {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if caPEM != "" {
			certPool := x509.NewCertPool()
			if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
				return nil, ErrInvalidCertificatePem
			}
			tlsConfig.RootCAs = certPool
		}
		if v := opts.withCertificateValidator; v != nil {
			tlsConfig.VerifyConnection = func(cs tls.ConnectionState) error {
				return v(cs)
			}
		}
		tr.TLSClientConfig = tlsConfig
	}

	return &http.Client{
		Transport: tr,
		Timeout:   opts.withTimeout,
		// backchannel responses are final, a 3xx is returned to the caller
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// ClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func ClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
