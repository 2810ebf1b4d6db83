package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cambosugarscan/apiserver/internal/handlers"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logging.Nop()
	m := metrics.New(nil)
	pub := &testutil.RecordingPublisher{}
	users := services.NewUserService(testutil.NewMemUsers(), services.NewBcryptHasher(4), pub, m, log)
	products := services.NewProductService(testutil.NewMemProducts(), pub, m, log)

	return NewRouter(Routes{
		Products: products,
		Users:    users,
		Auth:     handlers.NewAuthenticator(users, "secret", time.Hour),
		Metrics:  m,
		Log:      log,
	})
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/healthz", "/api/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["ok"])
	}
}

func TestRouterMountsAPI(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		path string
		want int
	}{
		{"/api/sugar-score/12.5", http.StatusOK},
		{"/api/products", http.StatusOK},
		{"/api/products/stats/summary", http.StatusOK},
		{"/api/products/missing", http.StatusNotFound},
		{"/api/users", http.StatusUnauthorized},
		{"/api/auth/me", http.StatusUnauthorized},
		{"/products", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.path)
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
