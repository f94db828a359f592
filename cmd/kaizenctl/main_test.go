package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlynch25/kaizen_api/internal/app"
	"github.com/jlynch25/kaizen_api/internal/config"
	"github.com/jlynch25/kaizen_api/internal/lib/logger"
)

func startAPI(t *testing.T) string {
	t.Helper()

	cfg := &config.Config{
		Env:            config.EnvLocal,
		StorageDriver:  config.DriverMemory,
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
		Flow: config.Flow{
			Network:       "testnet",
			EventContract: "0x1111111111111111",
			NFTContract:   "0x1111111111111111",
		},
	}
	a, err := app.New(context.Background(), logger.Discard(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(a.HTTPServer.Handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, apiURL, tokenFile string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", apiURL, "--token-file", tokenFile}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHealth(t *testing.T) {
	api := startAPI(t)

	out, err := run(t, api, filepath.Join(t.TempDir(), "token"), "health")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestSessionLifecycle(t *testing.T) {
	api := startAPI(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	email := gofakeit.Email()

	_, err := run(t, api, tokenFile, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out, err := run(t, api, tokenFile, "register", "--username", "ada", "--email", email, "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as")

	out, err = run(t, api, tokenFile, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"username": "ada"`)

	out, err = run(t, api, tokenFile, "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = run(t, api, tokenFile, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)

	_, err = run(t, api, tokenFile, "login", "--email", email, "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = run(t, api, tokenFile, "login", "--email", email, "--password", "pw")
	require.NoError(t, err)
}

func TestEvents(t *testing.T) {
	api := startAPI(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	date := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)

	_, err := run(t, api, tokenFile, "events", "create",
		"--title", "Jazz Night", "--location", "Dublin", "--date", date, "--price", "2.5", "--seats", "40")
	require.NoError(t, err)

	out, err := run(t, api, tokenFile, "events", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Jazz Night")
	assert.Contains(t, out, "upcoming")

	out, err = run(t, api, tokenFile, "events", "search", "jazz")
	require.NoError(t, err)
	assert.Contains(t, out, "Jazz Night")

	_, err = run(t, api, tokenFile, "events", "create", "--title", "x", "--location", "y", "--date", "tomorrow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFC3339")

	_, err = run(t, api, tokenFile, "events", "get", "0123456789abcdef01234567")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Event not found")
}
