package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/cors"
	"github.com/stretchr/testify/require"
)

func preflight(t *testing.T, handler http.Handler, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSWildcardNeverAllowsCredentials(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	for _, origins := range [][]string{nil, {"*"}, {"https://tab.example.com", "*"}} {
		rec := preflight(t, cors.New(corsOptions(origins)).Handler(noop), "https://evil.example.com")
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	}
}

func TestCORSExplicitOriginsAllowCredentials(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	handler := cors.New(corsOptions([]string{"https://tab.example.com"})).Handler(noop)

	rec := preflight(t, handler, "https://tab.example.com")
	require.Equal(t, "https://tab.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight(t, handler, "https://evil.example.com")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouterDefaultCORS(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	require.Empty(t, res.Header.Get("Access-Control-Allow-Credentials"))
}
