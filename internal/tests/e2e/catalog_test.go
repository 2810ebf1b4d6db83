//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/db"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = dockerCompose(context.Background(), root, "down")
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdown()
		os.Exit(1)
	}

	code := m.Run()

	shutdown()
	os.Exit(code)
}

func TestProductLifecycle(t *testing.T) {
	token := adminToken(t)
	barcode := fmt.Sprintf("885%d", time.Now().UnixNano()%1_000_000_000)

	var created productResponse
	status := call(t, http.MethodPost, "/api/products", token, map[string]any{
		"barcode":             barcode,
		"nameKh":              "ទឹកក្រូច",
		"nameEn":              "Orange Drink",
		"brand":               "Acme",
		"sugarPer100g":        "30",
		"defaultServingSizeG": 330,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "high", created.SugarLevel)

	status = call(t, http.MethodPost, "/api/products", token, map[string]any{
		"barcode":      " " + barcode + " ",
		"nameKh":       "ស្ទួន",
		"sugarPer100g": 1,
	}, nil)
	require.Equal(t, http.StatusConflict, status)

	var scanned productResponse
	status = call(t, http.MethodGet, "/api/products/barcode/"+barcode, "", nil, &scanned)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, created.ID, scanned.ID)
	require.InDelta(t, 99.0, scanned.SugarPerServingG, 0.001)

	var updated productResponse
	status = call(t, http.MethodPut, "/api/products/"+created.ID, token, map[string]any{
		"sugarPer100g": 4,
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "low", updated.SugarLevel)
	require.Equal(t, "Acme", updated.Brand)

	status = call(t, http.MethodPut, "/api/products/"+created.ID, "", map[string]any{"sugarPer100g": 1}, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	var page struct {
		Items []productResponse `json:"items"`
		Total int               `json:"total"`
	}
	status = call(t, http.MethodGet, "/api/products?q=orange%20DRINK", "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.GreaterOrEqual(t, page.Total, 1)

	status = call(t, http.MethodDelete, "/api/products/"+created.ID, token, nil, nil)
	require.Equal(t, http.StatusNoContent, status)

	status = call(t, http.MethodGet, "/api/products/"+created.ID, "", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestBlockedUserCannotLogin(t *testing.T) {
	token := adminToken(t)
	email := fmt.Sprintf("blocked_%d@example.com", time.Now().UnixNano())

	var registered authResponse
	status := call(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Sokha",
		"email":    email,
		"password": "secret1",
		"age":      10,
	}, &registered)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "children", registered.User.AgeGroup)

	status = call(t, http.MethodPut, "/api/users/"+registered.User.ID, token, map[string]any{
		"name":   "Sokha",
		"email":  email,
		"role":   "user",
		"status": "blocked",
		"age":    10,
	}, nil)
	require.Equal(t, http.StatusOK, status)

	status = call(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": "secret1",
	}, nil)
	require.Equal(t, http.StatusForbidden, status)

	status = call(t, http.MethodGet, "/api/auth/me", registered.Token, nil, nil)
	require.Equal(t, http.StatusForbidden, status)
}

type productResponse struct {
	ID               string  `json:"id"`
	Brand            string  `json:"brand"`
	SugarLevel       string  `json:"sugarLevel"`
	SugarPerServingG float64 `json:"sugarPerServingG"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		AgeGroup string `json:"ageGroup"`
	} `json:"user"`
}

// adminToken registers a fresh account, promotes it in the database and logs
// in through the admin endpoint.
func adminToken(t *testing.T) string {
	t.Helper()
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())

	status := call(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "E2E Admin",
		"email":    email,
		"password": "testpass123!",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, promoteUserToAdmin(email))

	var resp authResponse
	status = call(t, http.MethodPost, "/api/auth/admin-login", "", map[string]any{
		"email":    email,
		"password": "testpass123!",
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func call(t *testing.T, method, path, token string, payload any, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(raw, out), strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode
}

func promoteUserToAdmin(email string) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE email = $1", email)
	return err
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "sugarscan")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "sugarscan_db")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("BCRYPT_COST", "4")
	_ = os.Setenv("EVENTS_BACKEND", "")
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(ctx, cfg, logging.New(os.Stderr, "text", "warn"))
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
