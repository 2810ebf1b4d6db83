package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/testutil"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	router   http.Handler
	auth     *Authenticator
	users    *services.UserService
	products *services.ProductService
	userRepo *testutil.MemUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Nop()
	m := metrics.New(nil)
	pub := &testutil.RecordingPublisher{}

	userRepo := testutil.NewMemUsers()
	users := services.NewUserService(userRepo, services.NewBcryptHasher(4), pub, m, log)
	products := services.NewProductService(testutil.NewMemProducts(), pub, m, log)
	auth := NewAuthenticator(users, testSecret, time.Hour)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Healthz)
		r.Get("/sugar-score/{value}", SugarScore)
		r.Route("/products", func(r chi.Router) {
			ProductRouter(r, products, auth, log)
		})
		r.Route("/users", func(r chi.Router) {
			UserRouter(r, users, auth, log)
		})
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, users, auth, log)
		})
	})

	return &testEnv{router: r, auth: auth, users: users, products: products, userRepo: userRepo}
}

func (e *testEnv) createUser(t *testing.T, body string) types.User {
	t.Helper()
	var in rules.UserInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	user, err := e.users.Create(context.Background(), in)
	require.NoError(t, err)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := e.auth.issueToken(user.ID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) admin(t *testing.T) (types.User, string) {
	t.Helper()
	admin := e.createUser(t, `{"name":"Admin","email":"admin@example.com","password":"secret1","role":"admin"}`)
	return admin, e.tokenFor(t, admin)
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, rec).Error
}
