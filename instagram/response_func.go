package instagram

import (
	"html/template"
	"net/http"
)

// SignInFunc is used by a Handler to sign in an authenticated identity, for
// example by issuing the host's session cookie. It's called before the
// user-agent is redirected to Properties.RedirectURI. An error fails the
// sign in and the user-agent is redirected with error=access_denied.
type SignInFunc func(w http.ResponseWriter, req *http.Request, id *Identity, p *Properties) error

// ErrorResponseFunc is used by a Handler to create a http response when a
// callback can't be completed with a redirect, for example when the state
// couldn't be recovered. The error is for logging; it shouldn't be shown to
// the user-agent.
type ErrorResponseFunc func(w http.ResponseWriter, req *http.Request, statusCode int, err error)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p class="error">{{.Message}}</p>
</body>
</html>
`))

// DefaultErrorResponse is the default ErrorResponseFunc. It writes a small
// html page which doesn't disclose err.
func DefaultErrorResponse(w http.ResponseWriter, _ *http.Request, statusCode int, _ error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = errorPage.Execute(w, struct {
		Title   string
		Message string
	}{
		Title:   http.StatusText(statusCode),
		Message: "The sign in could not be completed. Please try again.",
	})
}
