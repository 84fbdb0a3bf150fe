/*
Package instagram provides sign in with Instagram for net/http servers,
using the oauth2 authorization code flow.

A Handler redirects the user-agent to Instagram's authorization endpoint
(BeginChallenge), handles the callback Instagram sends it back to
(HandleCallback), exchanges the authorization code for an access token,
maps the token response into an Identity and hands it to the host's
SignInFunc before returning the user-agent where it started (Finalize).

The flow keeps no server side state. Everything the callback needs travels
in the oauth "state" parameter, protected by a StateCodec, and is bound to
the user-agent by a correlation cookie carrying the same anti-forgery
marker.

	key, _ := instagram.NewStateKey()
	codec, _ := instagram.NewEncryptedStateCodec(key)
	c, _ := instagram.NewConfig(clientId, clientSecret, codec,
		instagram.WithScopes("basic"),
		instagram.WithAuthenticationMode(instagram.Active),
	)
	h, _ := instagram.NewHandler(c, instagram.WithSignIn(signIn))
	defer h.Done()
	http.ListenAndServe(":8080", h.Middleware(mux))

Callbacks that fail still return the user-agent, with error=access_denied
appended to its return URL. Only a callback whose state can't be recovered
is answered with an error page, see ErrorResponseFunc.

TestProvider fakes Instagram's authorization and token endpoints for tests.
*/
package instagram
