package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/store"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// UserService is the account API the handlers depend on.
type UserService interface {
	List(ctx context.Context, q string, offset, limit int) ([]types.User, int, error)
	GetByID(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, in rules.UserInput) (types.User, error)
	Register(ctx context.Context, in rules.UserInput) (types.User, error)
	Update(ctx context.Context, id string, in rules.UserInput) (types.User, error)
	UpdateProfile(ctx context.Context, id string, in rules.ProfileInput) (types.User, error)
	Delete(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (types.User, error)
	AuthenticateAdmin(ctx context.Context, email, password string) (types.User, error)
	Stats(ctx context.Context) (types.UserStats, error)
}

// Authenticator issues and verifies HS256 bearer tokens whose subject is the
// user ID.
type Authenticator struct {
	users    UserService
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthenticator(users UserService, jwtSecret string, tokenTTL time.Duration) *Authenticator {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Authenticator{
		users:    users,
		secret:   []byte(jwtSecret),
		tokenTTL: tokenTTL,
	}
}

// RequireAuth resolves the bearer token to a stored, unblocked user and puts
// that user into the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := parseTokenSubject(tokenString, a.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := a.users.GetByID(r.Context(), subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if user.Status == types.StatusBlocked {
			writeError(w, http.StatusForbidden, services.ErrAccountBlocked.Error())
			return
		}

		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, services.ErrNotAdmin.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Admin chains RequireAuth and RequireAdmin.
func (a *Authenticator) Admin(next http.Handler) http.Handler {
	return a.RequireAuth(a.RequireAdmin(next))
}

func (a *Authenticator) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// AuthHandler provides registration, login and session endpoints.
type AuthHandler struct {
	users UserService
	auth  *Authenticator
	errs  errorWriter
}

func NewAuthHandler(users UserService, auth *Authenticator, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		users: users,
		auth:  auth,
		errs:  errorWriter{log: log, resource: "user", conflict: "email already exists"},
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users UserService, auth *Authenticator, log logging.Logger) {
	handler := NewAuthHandler(users, auth, log)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/admin-login", handler.AdminLogin)
	r.With(auth.RequireAuth).Get("/me", handler.Me)
}

// Register creates an active user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in rules.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		h.errs.during("register").write(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.users.Authenticate)
}

// AdminLogin is Login for the admin console; non-admins get 403.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.users.AuthenticateAdmin)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, authenticate func(context.Context, string, string) (types.User, error)) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := authenticate(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, services.ErrAccountBlocked), errors.Is(err, services.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
		return
	default:
		h.errs.during("login").write(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, err := h.auth.issueToken(user.ID)
	if err != nil {
		h.errs.during("issue token").write(w, r, err)
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
