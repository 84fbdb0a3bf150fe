package instagram

import (
	"context"
	"net/http"
)

// AuthenticatedContext is handed to Events.OnAuthenticated after a
// successful token exchange.
type AuthenticatedContext struct {
	// Request is the callback request.
	Request *http.Request

	// TokenResponse is the provider's parsed token response.
	TokenResponse *TokenResponse

	// Identity was built from the token response. The hook may add claims
	// to it or replace it. A nil Identity rejects the sign in.
	Identity *Identity

	// Properties were recovered from the flow's state.
	Properties *Properties
}

// AccessToken returns the user's access token.
func (c *AuthenticatedContext) AccessToken() AccessToken {
	if c.TokenResponse == nil {
		return ""
	}
	return c.TokenResponse.AccessToken
}

// User returns the provider's user.
func (c *AuthenticatedContext) User() User {
	if c.TokenResponse == nil {
		return User{}
	}
	return c.TokenResponse.User
}

// ReturnEndpointContext is handed to Events.OnReturnEndpoint before the
// handler signs in and redirects the user-agent.
type ReturnEndpointContext struct {
	// Request is the callback request.
	Request *http.Request

	// Identity is nil when the callback failed.
	Identity *Identity

	// Properties were recovered from the flow's state. They're nil when
	// the state couldn't be recovered.
	Properties *Properties

	// RedirectURI is where the user-agent will be returned. The hook may
	// change it.
	RedirectURI string

	// SignInAsAuthenticationType is the authentication type the identity
	// will be re-issued under before sign in. The hook may change it.
	SignInAsAuthenticationType string

	completed bool
}

// RequestCompleted tells the handler the hook has written the response, so
// the handler won't redirect.
func (c *ReturnEndpointContext) RequestCompleted() {
	c.completed = true
}

// IsRequestCompleted reports whether the response has been written.
func (c *ReturnEndpointContext) IsRequestCompleted() bool {
	return c.completed
}

// Events are the hooks a host can use to participate in the flow. Either
// hook may return an error which ends the flow as a failed sign in.
type Events interface {
	// OnAuthenticated is called after a successful token exchange, once
	// the Identity has been built.
	OnAuthenticated(ctx context.Context, c *AuthenticatedContext) error

	// OnReturnEndpoint is called before the identity is signed in and the
	// user-agent is redirected.
	OnReturnEndpoint(ctx context.Context, c *ReturnEndpointContext) error
}

// EventFuncs is an Events made of funcs. A nil func is a no-op.
type EventFuncs struct {
	Authenticated  func(ctx context.Context, c *AuthenticatedContext) error
	ReturnEndpoint func(ctx context.Context, c *ReturnEndpointContext) error
}

// ensure that EventFuncs implements the Events interface
var _ Events = EventFuncs{}

// OnAuthenticated implements the Events.OnAuthenticated() interface function.
func (e EventFuncs) OnAuthenticated(ctx context.Context, c *AuthenticatedContext) error {
	if e.Authenticated == nil {
		return nil
	}
	return e.Authenticated(ctx, c)
}

// OnReturnEndpoint implements the Events.OnReturnEndpoint() interface function.
func (e EventFuncs) OnReturnEndpoint(ctx context.Context, c *ReturnEndpointContext) error {
	if e.ReturnEndpoint == nil {
		return nil
	}
	return e.ReturnEndpoint(ctx, c)
}
