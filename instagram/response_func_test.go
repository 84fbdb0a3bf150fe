package instagram

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestDefaultErrorResponse(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, testHost+DefaultCallbackPath, nil)
	DefaultErrorResponse(w, r, http.StatusInternalServerError, errors.New("secret internal detail <script>"))

	resp := w.Result()
	assert.Equal(http.StatusInternalServerError, resp.StatusCode)
	assert.Equal("text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal("no-store", resp.Header.Get("Cache-Control"))

	root, err := html.Parse(resp.Body)
	require.NoError(err)
	h1, ok := scrape.Find(root, scrape.ByTag(atom.H1))
	require.True(ok)
	assert.Equal(http.StatusText(http.StatusInternalServerError), scrape.Text(h1))

	msg, ok := scrape.Find(root, scrape.ByClass("error"))
	require.True(ok)
	assert.NotEmpty(scrape.Text(msg))
	assert.NotContains(w.Body.String(), "secret internal detail")
}

func TestHandler_ErrorPage(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	h := testNewHandler(t, testNewConfig(t, tp))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, testHost+DefaultCallbackPath+"?code=ABC", nil))
	assert.Equal(http.StatusInternalServerError, w.Code)

	root, err := html.Parse(w.Body)
	require.NoError(err)
	_, ok := scrape.Find(root, scrape.ByClass("error"))
	assert.True(ok)
}
