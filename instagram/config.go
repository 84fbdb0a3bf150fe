package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/cap-instagram/instagram/internal/strutils"
	sdkHttp "github.com/hashicorp/cap-instagram/sdk/http"
)

const (
	// DefaultAuthenticationType is the default authentication type and
	// caption.
	DefaultAuthenticationType = "Instagram"

	// DefaultCallbackPath is the default path the provider redirects the
	// user-agent back to.
	DefaultCallbackPath = "/signin-instagram"

	// DefaultBackchannelTimeout is the default timeout of the token
	// exchange.
	DefaultBackchannelTimeout = 60 * time.Second

	// DefaultStateTTL is the default lifetime of a challenge's state.
	DefaultStateTTL = 15 * time.Minute

	// AuthorizationEndpoint is the provider's authorization endpoint.
	AuthorizationEndpoint = "https://api.instagram.com/oauth/authorize/"

	// TokenEndpoint is the provider's token endpoint.
	TokenEndpoint = "https://api.instagram.com/oauth/access_token"
)

// AuthenticationMode determines when a Handler challenges.
type AuthenticationMode int

const (
	// Passive handlers only challenge when the host asks them to (see
	// Handler.BeginChallenge).
	Passive AuthenticationMode = iota

	// Active handlers also turn every 401 response written by the wrapped
	// handler into a challenge (see Handler.Middleware).
	Active
)

// String returns the mode's name.
func (m AuthenticationMode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration of the Instagram authorization code
// flow. It's immutable once it's been handed to NewHandler.
type Config struct {
	// ClientId is the client id assigned by Instagram.
	ClientId string

	// ClientSecret is the client secret assigned by Instagram.
	ClientSecret ClientSecret

	// CallbackPath is the request path where the user-agent is returned by
	// the provider. The handler processes this request when it arrives.
	CallbackPath string

	// RedirectURL is an optional absolute callback URL. When empty the
	// redirect_uri is built from the request's scheme, host and the
	// CallbackPath.
	RedirectURL string

	// Scopes is a list of permissions to request. Instagram expects them
	// comma separated.
	Scopes []string

	// AuthURL is the provider's authorization endpoint.
	AuthURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// AuthenticationType names this handler's identities.
	AuthenticationType string

	// Caption is the text a sign in UI can display for this handler.
	Caption string

	// AuthenticationMode determines when the handler challenges.
	AuthenticationMode AuthenticationMode

	// SignInAsAuthenticationType is an optional authentication type which
	// the identity is re-issued under before it's handed to the host's
	// sign in.
	SignInAsAuthenticationType string

	// BackchannelTimeout bounds the token exchange.
	BackchannelTimeout time.Duration

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	// CertificateValidator is an optional hook to validate the provider's
	// TLS connection (see sdk/http.CertificateValidator).
	CertificateValidator sdkHttp.CertificateValidator `json:"-"`

	// StateCodec protects the flow's Properties into the oauth state.
	StateCodec StateCodec `json:"-"`

	// StateTTL is the lifetime of a challenge's state.
	StateTTL time.Duration

	// Logger receives the handler's warnings and errors.
	Logger hclog.Logger `json:"-"`
}

// NewConfig composes a new config for the Instagram provider.
//
// Supported options:
//   - WithCallbackPath
//   - WithRedirectURL
//   - WithScopes
//   - WithEndpoints
//   - WithAuthenticationType
//   - WithCaption
//   - WithAuthenticationMode
//   - WithSignInAsAuthenticationType
//   - WithBackchannelTimeout
//   - WithProviderCA
//   - WithCertificateValidator
//   - WithStateTTL
//   - WithLogger
func NewConfig(clientId string, clientSecret ClientSecret, codec StateCodec, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientId:                   clientId,
		ClientSecret:               clientSecret,
		CallbackPath:               opts.withCallbackPath,
		RedirectURL:                opts.withRedirectURL,
		Scopes:                     opts.withScopes,
		AuthURL:                    opts.withAuthURL,
		TokenURL:                   opts.withTokenURL,
		AuthenticationType:         opts.withAuthenticationType,
		Caption:                    opts.withCaption,
		AuthenticationMode:         opts.withAuthenticationMode,
		SignInAsAuthenticationType: opts.withSignInAsAuthenticationType,
		BackchannelTimeout:         opts.withBackchannelTimeout,
		ProviderCA:                 opts.withProviderCA,
		CertificateValidator:       opts.withCertificateValidator,
		StateCodec:                 codec,
		StateTTL:                   opts.withStateTTL,
		Logger:                     opts.withLogger,
	}
	if c.Caption == "" {
		c.Caption = c.AuthenticationType
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. Every problem found is reported.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientId == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if c.StateCodec == nil {
		result = multierror.Append(result, fmt.Errorf("%s: state codec is nil: %w", op, ErrNilParameter))
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		result = multierror.Append(result, fmt.Errorf("%s: callback path %q must start with /: %w", op, c.CallbackPath, ErrInvalidParameter))
	}
	if c.RedirectURL != "" {
		u, err := url.Parse(c.RedirectURL)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("%s: redirect URL %s is invalid: %w: %w", op, c.RedirectURL, ErrInvalidParameter, err))
		case !u.IsAbs():
			result = multierror.Append(result, fmt.Errorf("%s: redirect URL %s is not absolute: %w", op, c.RedirectURL, ErrInvalidParameter))
		case u.Path != c.CallbackPath:
			result = multierror.Append(result, fmt.Errorf("%s: redirect URL path %q does not match callback path %q: %w", op, u.Path, c.CallbackPath, ErrInvalidParameter))
		}
	}
	for _, e := range []struct{ name, url string }{{"auth URL", c.AuthURL}, {"token URL", c.TokenURL}} {
		u, err := url.Parse(e.url)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %s %s is invalid: %w: %w", op, e.name, e.url, ErrInvalidParameter, err))
			continue
		}
		if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
			result = multierror.Append(result, fmt.Errorf("%s: %s %q scheme is not http or https: %w", op, e.name, e.url, ErrInvalidParameter))
		}
	}
	if c.AuthenticationType == "" {
		result = multierror.Append(result, fmt.Errorf("%s: authentication type is empty: %w", op, ErrInvalidParameter))
	}
	if c.AuthenticationMode != Passive && c.AuthenticationMode != Active {
		result = multierror.Append(result, fmt.Errorf("%s: unknown authentication mode %s: %w", op, c.AuthenticationMode, ErrInvalidParameter))
	}
	if c.BackchannelTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s: backchannel timeout not greater than zero: %w", op, ErrInvalidParameter))
	}
	if c.StateTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s: state ttl not greater than zero: %w", op, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// HttpClient is a helper function that creates a new http client for the
// provider configured. The returned client is meant to be created once and
// shared.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(
		c.ProviderCA,
		sdkHttp.WithTimeout(c.BackchannelTimeout),
		sdkHttp.WithCertificateValidator(c.CertificateValidator),
	)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value successfully: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. Provider.Exchange uses the client carried
// by its ctx when there is one.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	return sdkHttp.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withCallbackPath               string
	withRedirectURL                string
	withScopes                     []string
	withAuthURL                    string
	withTokenURL                   string
	withAuthenticationType         string
	withCaption                    string
	withAuthenticationMode         AuthenticationMode
	withSignInAsAuthenticationType string
	withBackchannelTimeout         time.Duration
	withProviderCA                 string
	withCertificateValidator       sdkHttp.CertificateValidator
	withStateTTL                   time.Duration
	withLogger                     hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withCallbackPath:       DefaultCallbackPath,
		withAuthURL:            AuthorizationEndpoint,
		withTokenURL:           TokenEndpoint,
		withAuthenticationType: DefaultAuthenticationType,
		withAuthenticationMode: Passive,
		withBackchannelTimeout: DefaultBackchannelTimeout,
		withStateTTL:           DefaultStateTTL,
		withLogger:             hclog.NewNullLogger(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithCallbackPath provides an optional callback path.
func WithCallbackPath(p string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCallbackPath = p
		}
	}
}

// WithRedirectURL provides an optional absolute callback URL. Its path must
// equal the config's callback path.
func WithRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRedirectURL = u
		}
	}
}

// WithScopes provides an optional list of scopes for the provider's config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithEndpoints overrides the provider's authorization and token endpoints.
func WithEndpoints(authURL, tokenURL string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthURL = authURL
			o.withTokenURL = tokenURL
		}
	}
}

// WithAuthenticationType provides an optional authentication type.
func WithAuthenticationType(t string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthenticationType = t
		}
	}
}

// WithCaption provides an optional caption. It defaults to the
// authentication type.
func WithCaption(caption string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCaption = caption
		}
	}
}

// WithAuthenticationMode provides an optional authentication mode.
func WithAuthenticationMode(m AuthenticationMode) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAuthenticationMode = m
		}
	}
}

// WithSignInAsAuthenticationType provides an optional authentication type
// for identities handed to the host's sign in.
func WithSignInAsAuthenticationType(t string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSignInAsAuthenticationType = t
		}
	}
}

// WithBackchannelTimeout provides an optional timeout for the token
// exchange.
func WithBackchannelTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withBackchannelTimeout = d
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithCertificateValidator provides an optional validator of the provider's
// TLS connection.
func WithCertificateValidator(v sdkHttp.CertificateValidator) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withCertificateValidator = v
		}
	}
}

// WithStateTTL provides an optional lifetime for a challenge's state.
func WithStateTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withStateTTL = d
		}
	}
}

// WithLogger provides an optional logger for the provider's config
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
