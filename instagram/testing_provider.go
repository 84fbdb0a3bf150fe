package instagram

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/cap-instagram/instagram/internal/strutils"
)

// Paths of the TestProvider's endpoints.
const (
	TestAuthPath  = "/oauth/authorize/"
	TestTokenPath = "/oauth/access_token"
)

// TestTokenRequest is a token request received by a TestProvider.
type TestTokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientId     string
	ClientSecret string
	ContentType  string
}

// TestProvider is a local TLS server which fakes the provider's
// authorization and token endpoints, which makes writing tests much easier.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	mu                  sync.Mutex
	clientId            string
	clientSecret        string
	expectedAuthCode    string
	allowedRedirectURIs []string
	user                map[string]interface{}
	accessToken         string
	tokenStatus         int
	tokenRequests       []TestTokenRequest
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test ends.
//
// Supported options:
//   - WithTestPort
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	p := &TestProvider{
		clientId:         "test-client-id",
		clientSecret:     "test-client-secret",
		expectedAuthCode: "test-auth-code",
		user: map[string]interface{}{
			"id":              "1",
			"username":        "bob",
			"full_name":       "Bob",
			"profile_picture": "https://example.com/bob.jpg",
		},
		accessToken: "test-access-token",
		tokenStatus: http.StatusOK,
	}

	p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.Stop)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's address.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// AuthURL returns the provider's authorization endpoint.
func (p *TestProvider) AuthURL() string { return p.Addr() + TestAuthPath }

// TokenURL returns the provider's token endpoint.
func (p *TestProvider) TokenURL() string { return p.Addr() + TestTokenPath }

// CACert returns the pem-encoded CA certificate used by the provider's TLS
// server.
func (p *TestProvider) CACert() string { return p.caCert }

// HttpClient returns a client which trusts the provider.
func (p *TestProvider) HttpClient() *http.Client { return p.httpServer.Client() }

// SetClientCreds configures the client credentials the token endpoint
// accepts.
func (p *TestProvider) SetClientCreds(clientId, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientId = clientId
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the code returned by the authorization
// endpoint and accepted by the token endpoint.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs configures the redirect URIs the provider accepts.
// Any redirect URI is accepted when none are set.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetUser configures the user object of token responses. Its values are sent
// as is, so the id can be a string or a number.
func (p *TestProvider) SetUser(user map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
}

// SetAccessToken configures the access token of token responses.
func (p *TestProvider) SetAccessToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = token
}

// SetTokenStatus forces the token endpoint to answer with statusCode and an
// error body when statusCode isn't 200.
func (p *TestProvider) SetTokenStatus(statusCode int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = statusCode
}

// TokenRequests returns the token requests received so far.
func (p *TestProvider) TokenRequests() []TestTokenRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TestTokenRequest(nil), p.tokenRequests...)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, statusCode int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorReason string) {
	qv := req.URL.Query()
	v := url.Values{}
	v.Set("error", errorCode)
	v.Set("error_reason", errorReason)
	v.Set("error_description", "The user denied your request.")
	if s := qv.Get("state"); s != "" {
		v.Set("state", s)
	}
	http.Redirect(w, req, qv.Get("redirect_uri")+"?"+v.Encode(), http.StatusFound)
}

// writeTokenErrorResponse writes an error the way the provider does.
func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorType, errorMessage string) {
	p.writeJSON(w, statusCode, map[string]interface{}{
		"error_type":    errorType,
		"code":          statusCode,
		"error_message": errorMessage,
	})
}

func (p *TestProvider) redirectAllowed(uri string) bool {
	return len(p.allowedRedirectURIs) == 0 || strutils.StrListContains(p.allowedRedirectURIs, uri)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case TestAuthPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		switch {
		case qv.Get("redirect_uri") == "" || !p.redirectAllowed(qv.Get("redirect_uri")):
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Redirect URI does not match registered redirect URI")
			return
		case qv.Get("client_id") != p.clientId:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Invalid Client ID")
			return
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "bad_request")
			return
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "user_denied")
			return
		}
		v := url.Values{}
		v.Set("code", p.expectedAuthCode)
		if s := qv.Get("state"); s != "" {
			v.Set("state", s)
		}
		http.Redirect(w, req, qv.Get("redirect_uri")+"?"+v.Encode(), http.StatusFound)

	case TestTokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := req.ParseForm(); err != nil {
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "unable to parse form")
			return
		}
		tr := TestTokenRequest{
			GrantType:    req.PostForm.Get("grant_type"),
			Code:         req.PostForm.Get("code"),
			RedirectURI:  req.PostForm.Get("redirect_uri"),
			ClientId:     req.PostForm.Get("client_id"),
			ClientSecret: req.PostForm.Get("client_secret"),
			ContentType:  req.Header.Get("Content-Type"),
		}
		p.tokenRequests = append(p.tokenRequests, tr)

		switch {
		case p.tokenStatus != http.StatusOK:
			p.writeTokenErrorResponse(w, p.tokenStatus, "OAuthException", "forced token failure")
			return
		case tr.GrantType != "authorization_code":
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Invalid grant_type")
			return
		case tr.ClientId != p.clientId || tr.ClientSecret != p.clientSecret:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Invalid Client Secret")
			return
		case !p.redirectAllowed(tr.RedirectURI):
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Redirect URI doesn't match original redirect URI")
			return
		case tr.Code != p.expectedAuthCode:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "OAuthException", "Matching code was not found or was already used.")
			return
		}
		p.writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": p.accessToken,
			"user":         p.user,
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testProviderOptions is the set of available options for StartTestProvider
type testProviderOptions struct {
	withPort int
}

// testProviderDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

// getTestProviderOpts gets the defaults and applies the opt overrides passed
// in
func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTestPort provides an optional port for the TestProvider. A random
// port is used by default.
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withPort = port
		}
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port if desired.
func httptestNewUnstartedServerWithPort(t *testing.T, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	if port == 0 {
		return httptest.NewUnstartedServer(handler)
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(t, err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}
