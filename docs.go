// capinstagram provides sign in with Instagram for Go's net/http, using the
// oauth2 authorization code flow.
//
// See the instagram package to get started and sdk/http for the backchannel
// client it builds on.
package capinstagram
