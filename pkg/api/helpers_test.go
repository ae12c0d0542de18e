package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pantry/pkg/api"
	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
	"github.com/platinummonkey/pantry/pkg/storage/sqlstore"
)

const testPassword = "testpass123"

type testEnv struct {
	t        *testing.T
	server   *api.Server
	store    *sqlstore.Store
	tokens   *sqlstore.CachedTokenStore
	images   *storage.FileSystemImageStore
	mediaDir string
	metrics  *observability.Metrics
	authCfg  auth.Config
}

type envOption func(cfg *api.Config, deps *api.Dependencies)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	storeCfg := storage.DefaultConfig()
	storeCfg.Driver = sqlstore.DriverSQLite
	storeCfg.DSN = ":memory:"
	store, err := sqlstore.Open(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate(context.Background())
	require.NoError(t, err)

	mediaDir := t.TempDir()
	images, err := storage.NewFileSystemImageStore(mediaDir, "/media/")
	require.NoError(t, err)

	tokens := store.NewTokenCache(100, time.Minute, nil)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	cfg := api.Config{Auth: auth.DefaultConfig(), MaxBodyBytes: 1 << 20}
	deps := api.Dependencies{
		Users:       store,
		Tokens:      tokens,
		Tags:        store.Tags(),
		Ingredients: store.Ingredients(),
		Recipes:     store.Recipes(),
		Images:      images,
		Hasher:      auth.NewBcryptHasher(4),
		Logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:     metrics,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	return &testEnv{
		t:        t,
		server:   api.NewServer(cfg, deps),
		store:    store,
		tokens:   tokens,
		images:   images,
		mediaDir: mediaDir,
		metrics:  metrics,
		authCfg:  cfg.Auth,
	}
}

// newRequest builds a request; body may be nil, a string or a value to encode as JSON
func newRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

// do sends a request authenticated with the Authorization header; an empty
// token sends an anonymous request
func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	req := newRequest(e.t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	return e.serve(req)
}

func (e *testEnv) createUser(email, name string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/user/create/", "", map[string]string{
		"email": email, "password": testPassword, "name": name,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
}

// loginResult carries everything a browser keeps after logging in
type loginResult struct {
	token      string
	authCookie *http.Cookie
	csrfCookie *http.Cookie
	csrfToken  string
}

func (e *testEnv) login(email, password string) loginResult {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/user/token/", "", map[string]string{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var body api.LoginResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &body))

	result := loginResult{token: body.Token, csrfToken: w.Header().Get(e.authCfg.CSRFHeaderName)}
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case e.authCfg.CookieName:
			result.authCookie = c
		case e.authCfg.CSRFCookieName:
			result.csrfCookie = c
		}
	}
	return result
}

// userToken creates a user and returns its API token
func (e *testEnv) userToken(email string) string {
	e.t.Helper()
	e.createUser(email, "Test User")
	return e.login(email, testPassword).token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
