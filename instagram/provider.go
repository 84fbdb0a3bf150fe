package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// tracerName is the instrumentation name of the provider's spans.
const tracerName = "github.com/hashicorp/cap-instagram/instagram"

// maxTokenResponseSize bounds how much of a token response is read.
const maxTokenResponseSize = 1 << 20

// Provider provides integration with Instagram using the 3-legged oauth2
// authorization code flow.
type Provider struct {
	config *Config
	tracer trace.Tracer

	mu     sync.Mutex
	client *http.Client
}

// NewProvider creates and initializes a Provider. Unlike an OIDC provider
// there's no discovery, so no request is made to the provider.
//
// Supported options:
//   - WithTracerProvider
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	return &Provider{
		config: c,
		client: client,
		tracer: opts.withTracerProvider.Tracer(tracerName),
	}, nil
}

// Done with the provider's resources and must be called for every Provider
// created.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
}

// HttpClient returns the provider's long lived backchannel client.
func (p *Provider) HttpClient() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

func (p *Provider) oauth2Config(redirectURL string) *oauth2.Config {
	// Scopes are sent by AuthURL, since Instagram wants them comma separated
	return &oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthURL will generate a URL the caller can use to kick off an
// authorization code flow with Instagram. The redirectURL is the URL the
// provider should use as a redirect after the authentication/authorization is
// completed by the user, and the state is the already protected Properties of
// the flow.
func (p *Provider) AuthURL(ctx context.Context, redirectURL, state string) (string, error) {
	const op = "Provider.AuthURL"
	if redirectURL == "" {
		return "", fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	var authCodeOpts []oauth2.AuthCodeOption
	if len(p.config.Scopes) > 0 {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("scope", strings.Join(p.config.Scopes, ",")))
	}
	return p.oauth2Config(redirectURL).AuthCodeURL(state, authCodeOpts...), nil
}

// Exchange will request a token from the token endpoint, using the
// authorizationCode it received in an earlier successful authentication
// response. The redirectURL must be the one used to create the AuthURL.
//
// The http client carried by ctx (see HttpClientContext) is used when there
// is one, otherwise the provider's own client is used. Cancelling ctx aborts
// the request. Responses with a status outside of 2xx return an error which
// wraps both ErrBackchannel and an *oauth2.RetrieveError.
func (p *Provider) Exchange(ctx context.Context, redirectURL, authorizationCode string) (_ *TokenResponse, retErr error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrMissingCode)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}

	ctx, span := p.tracer.Start(ctx, "instagram.Exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", p.config.TokenURL)),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, "token exchange failed")
		}
		span.End()
	}()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {authorizationCode},
		"redirect_uri":  {redirectURL},
		"client_id":     {p.config.ClientId},
		"client_secret": {string(p.config.ClientSecret)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token request: %w: %w", op, ErrBackchannel, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.clientFromContext(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrBackchannel, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read token response: %w: %w", op, ErrBackchannel, err)
	}
	if code := resp.StatusCode; code < 200 || code > 299 {
		return nil, fmt.Errorf("%s: token endpoint returned %d: %w: %w", op, code, ErrBackchannel, newRetrieveError(resp, body))
	}
	tr, err := parseTokenResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tr, nil
}

// clientFromContext returns the ctx's client, or the provider's. Redirects
// are never followed, the token endpoint has to answer itself.
func (p *Provider) clientFromContext(ctx context.Context) *http.Client {
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil {
		nc := *c
		nc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
		return &nc
	}
	return p.HttpClient()
}

// newRetrieveError builds the oauth2 error of a failed token response,
// decoding the provider's error body when it has one.
func newRetrieveError(resp *http.Response, body []byte) *oauth2.RetrieveError {
	rErr := &oauth2.RetrieveError{Response: resp, Body: body}
	var e struct {
		// rfc 6749 error response
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`

		// instagram error response
		ErrorType    string `json:"error_type"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return rErr
	}
	rErr.ErrorCode, rErr.ErrorDescription, rErr.ErrorURI = e.Error, e.ErrorDescription, e.ErrorURI
	if rErr.ErrorCode == "" {
		rErr.ErrorCode = e.ErrorType
	}
	if rErr.ErrorDescription == "" {
		rErr.ErrorDescription = e.ErrorMessage
	}
	return rErr
}

// providerOptions is the set of available options for NewProvider
type providerOptions struct {
	withTracerProvider trace.TracerProvider
}

// providerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func providerDefaults() providerOptions {
	return providerOptions{
		withTracerProvider: otel.GetTracerProvider(),
	}
}

// getProviderOpts gets the defaults and applies the opt overrides passed in
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTracerProvider provides an optional tracer provider for: NewProvider
// and NewHandler. The global tracer provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o interface{}) {
		if tp == nil {
			return
		}
		switch v := o.(type) {
		case *providerOptions:
			v.withTracerProvider = tp
		case *handlerOptions:
			v.withTracerProvider = tp
		}
	}
}
