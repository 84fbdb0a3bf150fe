package instagram

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Ticket is the outcome of a callback. A ticket with a nil Identity is an
// unauthenticated result and Failure says why.
type Ticket struct {
	Identity   *Identity
	Properties *Properties
	Failure    error
}

// Description describes a Handler to a sign in UI.
type Description struct {
	AuthenticationType string
	Caption            string
}

// Handler implements the Instagram authorization code flow for a net/http
// server: it issues challenges which redirect the user-agent to the provider
// and it handles the provider's callback.
//
// A Handler is safe for concurrent use and should be created once.
type Handler struct {
	config        *Config
	provider      *Provider
	logger        hclog.Logger
	events        Events
	signIn        SignInFunc
	errorResponse ErrorResponseFunc
	metrics       *metrics
	now           func() time.Time
}

// NewHandler creates a Handler. The config must be valid.
//
// Supported options:
//   - WithEvents
//   - WithSignIn
//   - WithErrorResponse
//   - WithRegisterer
//   - WithTracerProvider
//   - WithNow
//
// See Handler.Done() which must be called to release the handler's resources.
func NewHandler(c *Config, opt ...Option) (*Handler, error) {
	const op = "NewHandler"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	opts := getHandlerOpts(opt...)
	p, err := NewProvider(c, WithTracerProvider(opts.withTracerProvider))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{
		config:        c,
		provider:      p,
		logger:        logger.Named("instagram"),
		events:        opts.withEvents,
		signIn:        opts.withSignIn,
		errorResponse: opts.withErrorResponse,
		metrics:       newMetrics(opts.withRegisterer),
		now:           opts.withNowFunc,
	}, nil
}

// Done releases the handler's backchannel connections.
func (h *Handler) Done() {
	h.provider.Done()
}

// Description returns the handler's authentication type and caption.
func (h *Handler) Description() Description {
	return Description{
		AuthenticationType: h.config.AuthenticationType,
		Caption:            h.config.Caption,
	}
}

// BeginChallenge redirects the user-agent to the provider's authorization
// endpoint and returns the URL it redirected to. The props are copied; when
// their RedirectURI is empty the user-agent returns to the current request's
// path and query once the flow completes. A nil props is allowed.
//
// No request is sent to the provider.
func (h *Handler) BeginChallenge(w http.ResponseWriter, r *http.Request, props *Properties) (string, error) {
	const op = "Handler.BeginChallenge"
	p := props.Clone()
	if p.RedirectURI == "" {
		p.RedirectURI = r.URL.RequestURI()
	}
	now := h.now()
	p.IssuedAt = now
	p.ExpiresAt = now.Add(h.config.StateTTL)

	marker, err := NewId("")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate anti-forgery marker: %w", op, err)
	}
	p.SetItem(xsrfKey, marker)

	state, err := h.config.StateCodec.Protect(p)
	if err != nil {
		return "", fmt.Errorf("%s: unable to protect state: %w", op, err)
	}
	authURL, err := h.provider.AuthURL(r.Context(), h.redirectURL(r), state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	h.setCorrelationCookie(w, r, marker, p.ExpiresAt)
	http.Redirect(w, r, authURL, http.StatusFound)
	h.metrics.challenges.Inc()
	return authURL, nil
}

// HandleCallback processes the provider's callback. It returns an error and
// no ticket when the callback's state is missing or can't be recovered, since
// there's nowhere safe to return the user-agent to. Otherwise it always
// returns a ticket; a failed flow has a nil Identity and the Failure which
// ended it. Failures are logged by the handler.
//
// The request's context bounds the token exchange.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) (*Ticket, error) {
	const op = "Handler.HandleCallback"
	ctx := r.Context()
	q := r.URL.Query()

	state, ok := singleValue(q, "state")
	if !ok {
		h.metrics.callback(outcomeMalformed)
		h.logger.Warn("callback state is missing or repeated", "op", op)
		return nil, fmt.Errorf("%s: state parameter is missing or repeated: %w", op, ErrMalformedCallback)
	}
	props, err := h.config.StateCodec.Unprotect(state)
	if err != nil {
		h.metrics.callback(outcomeInvalidState)
		h.logger.Warn("unable to recover callback state", "op", op, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cookieMarker := h.consumeCorrelationCookie(w, r)

	t := &Ticket{Properties: props}
	fail := func(outcome string, err error) (*Ticket, error) {
		h.metrics.callback(outcome)
		t.Failure = err
		return t, nil
	}

	if err := validateCorrelation(props, cookieMarker); err != nil {
		h.logger.Warn("possible cross-site request forgery, callback rejected", "op", op, "error", err)
		return fail(outcomeCorrelationFailed, fmt.Errorf("%s: %w", op, err))
	}
	if props.IsExpired(WithNow(h.now)) {
		h.logger.Warn("callback state is expired", "op", op, "expires_at", props.ExpiresAt)
		return fail(outcomeExpired, fmt.Errorf("%s: %w", op, ErrExpiredState))
	}
	if e := q.Get("error"); e != "" {
		h.logger.Warn("provider returned an error", "op", op, "error", e, "error_description", q.Get("error_description"))
		return fail(outcomeAccessDenied, fmt.Errorf("%s: provider error %q: %w", op, e, ErrAccessDenied))
	}
	code, ok := singleValue(q, "code")
	if !ok {
		h.logger.Warn("callback code is missing or repeated", "op", op)
		return fail(outcomeMissingCode, fmt.Errorf("%s: %w", op, ErrMissingCode))
	}

	start := time.Now()
	tr, err := h.provider.Exchange(ctx, h.redirectURL(r), code)
	h.metrics.exchangeTimes.Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("unable to exchange authorization code", "op", op, "error", err)
		return fail(outcomeBackchannelError, fmt.Errorf("%s: %w", op, err))
	}

	ac := &AuthenticatedContext{
		Request:       r,
		TokenResponse: tr,
		Identity:      newIdentity(h.config.AuthenticationType, tr),
		Properties:    props,
	}
	if err := h.events.OnAuthenticated(ctx, ac); err != nil {
		h.logger.Error("authenticated event rejected the sign in", "op", op, "error", err)
		return fail(outcomeRejected, fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err))
	}
	if ac.Properties != nil {
		t.Properties = ac.Properties
	}
	if ac.Identity == nil {
		h.logger.Warn("authenticated event removed the identity", "op", op)
		return fail(outcomeRejected, fmt.Errorf("%s: identity was removed: %w", op, ErrAccessDenied))
	}
	t.Identity = ac.Identity
	h.metrics.callback(outcomeSuccess)
	return t, nil
}

// Finalize completes a callback: it runs the return endpoint event, signs in
// the ticket's identity and redirects the user-agent to the ticket's
// RedirectURI. When there's no identity the redirect carries
// error=access_denied. It returns whether the response has been written; when
// it hasn't, the request should continue down the host's pipeline.
//
// A sign in failure is returned after the user-agent has been redirected.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request, t *Ticket) (bool, error) {
	const op = "Handler.Finalize"
	if t == nil {
		return false, fmt.Errorf("%s: ticket is nil: %w", op, ErrNilParameter)
	}
	rc := &ReturnEndpointContext{
		Request:                    r,
		Identity:                   t.Identity,
		Properties:                 t.Properties,
		SignInAsAuthenticationType: h.config.SignInAsAuthenticationType,
	}
	if t.Properties != nil {
		rc.RedirectURI = t.Properties.RedirectURI
	}

	var retErr error
	if err := h.events.OnReturnEndpoint(r.Context(), rc); err != nil {
		h.logger.Error("return endpoint event failed", "op", op, "error", err)
		rc.Identity = nil
		retErr = fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err)
	}
	if rc.Identity != nil && h.signIn != nil {
		id := rc.Identity
		if as := rc.SignInAsAuthenticationType; as != "" && as != id.AuthenticationType {
			id = id.WithAuthenticationType(as)
		}
		if err := h.signIn(w, r, id, rc.Properties); err != nil {
			h.logger.Error("sign in failed", "op", op, "error", err)
			rc.Identity = nil
			retErr = fmt.Errorf("%s: %w: %w", op, ErrSignInFailed, err)
		}
	}
	if !rc.IsRequestCompleted() && rc.RedirectURI != "" {
		redirectURI := rc.RedirectURI
		if rc.Identity == nil {
			redirectURI = withAccessDenied(redirectURI)
		}
		http.Redirect(w, r, redirectURI, http.StatusFound)
		rc.RequestCompleted()
	}
	return rc.IsRequestCompleted(), retErr
}

// InvokeCallback handles the request when it's for the callback path and
// reports whether the response has been written.
func (h *Handler) InvokeCallback(w http.ResponseWriter, r *http.Request) bool {
	const op = "Handler.InvokeCallback"
	if r.URL.Path != h.config.CallbackPath {
		return false
	}
	t, err := h.HandleCallback(w, r)
	if t == nil {
		h.logger.Warn("invalid return state, unable to redirect", "op", op, "error", err)
		h.errorResponse(w, r, http.StatusInternalServerError, err)
		return true
	}
	completed, _ := h.Finalize(w, r, t)
	return completed
}

// Middleware handles callbacks before they reach next. In Active mode it
// also turns every 401 written by next into a challenge.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.InvokeCallback(w, r) {
			return
		}
		if h.config.AuthenticationMode != Active {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&challengeWriter{ResponseWriter: w, r: r, h: h}, r)
	})
}

// ServeHTTP serves the callback path and answers 404 for anything else.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Middleware(http.NotFoundHandler()).ServeHTTP(w, r)
}

// redirectURL is the redirect_uri sent to the provider. It has to be the
// same for the challenge and the token exchange.
func (h *Handler) redirectURL(r *http.Request) string {
	if h.config.RedirectURL != "" {
		return h.config.RedirectURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: h.config.CallbackPath}).String()
}

// singleValue returns the parameter's value when it's present exactly once.
func singleValue(q url.Values, key string) (string, bool) {
	v := q[key]
	if len(v) != 1 || v[0] == "" {
		return "", false
	}
	return v[0], true
}

// withAccessDenied adds error=access_denied to the query of uri, keeping any
// fragment last.
func withAccessDenied(uri string) string {
	base, fragment, hasFragment := strings.Cut(uri, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	base += sep + "error=access_denied"
	if hasFragment {
		base += "#" + fragment
	}
	return base
}

// challengeWriter turns a 401 into a challenge. The body of the 401 is
// discarded.
type challengeWriter struct {
	http.ResponseWriter
	r *http.Request
	h *Handler

	wroteHeader bool
	challenged  bool
}

func (cw *challengeWriter) WriteHeader(code int) {
	const op = "challengeWriter.WriteHeader"
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true
	if code != http.StatusUnauthorized {
		cw.ResponseWriter.WriteHeader(code)
		return
	}
	hdr := cw.ResponseWriter.Header()
	hdr.Del("Content-Type")
	hdr.Del("Content-Length")
	if _, err := cw.h.BeginChallenge(cw.ResponseWriter, cw.r, nil); err != nil {
		cw.h.logger.Error("unable to begin challenge", "op", op, "error", err)
		cw.ResponseWriter.WriteHeader(code)
		return
	}
	cw.challenged = true
}

func (cw *challengeWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	if cw.challenged {
		return len(b), nil
	}
	return cw.ResponseWriter.Write(b)
}

// Unwrap supports http.ResponseController.
func (cw *challengeWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// handlerOptions is the set of available options for NewHandler
type handlerOptions struct {
	withEvents         Events
	withSignIn         SignInFunc
	withErrorResponse  ErrorResponseFunc
	withRegisterer     prometheus.Registerer
	withTracerProvider trace.TracerProvider
	withNowFunc        func() time.Time
}

// handlerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func handlerDefaults() handlerOptions {
	return handlerOptions{
		withEvents:         EventFuncs{},
		withErrorResponse:  DefaultErrorResponse,
		withTracerProvider: otel.GetTracerProvider(),
		withNowFunc:        time.Now,
	}
}

// getHandlerOpts gets the defaults and applies the opt overrides passed in
func getHandlerOpts(opt ...Option) handlerOptions {
	opts := handlerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEvents provides optional Events for the handler.
func WithEvents(e Events) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok && e != nil {
			o.withEvents = e
		}
	}
}

// WithSignIn provides an optional SignInFunc for the handler. Without one
// identities aren't signed in, but the user-agent is still redirected.
func WithSignIn(fn SignInFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok {
			o.withSignIn = fn
		}
	}
}

// WithErrorResponse provides an optional ErrorResponseFunc for the handler.
func WithErrorResponse(fn ErrorResponseFunc) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok && fn != nil {
			o.withErrorResponse = fn
		}
	}
}

// WithRegisterer provides an optional prometheus registerer for the
// handler's metrics. Metrics aren't registered by default.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok {
			o.withRegisterer = reg
		}
	}
}
