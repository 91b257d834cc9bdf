package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/config"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/network"
	"github.com/agentuity/go-apiclient/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	srv    *httptest.Server
	logins atomic.Int32
	me     atomic.Int32
	items  atomic.Int32

	userID atomic.Int64
	valid  atomic.Bool
	reject atomic.Bool
}

func newServer(t *testing.T) *server {
	s := &server{}
	s.userID.Store(7)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		s.logins.Add(1)
		if s.reject.Load() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"Account disabled."}`)
			return
		}
		s.valid.Store(true)
		http.SetCookie(w, &http.Cookie{Name: api.CookieSession, Value: "sid", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: api.CookieCSRF, Value: "csrf", Path: "/"})
		w.Header().Set(api.HeaderUserID, fmt.Sprint(s.userID.Load()))
	})
	mux.HandleFunc("GET /api/logout", func(w http.ResponseWriter, r *http.Request) {})
	authed := func(r *http.Request) bool {
		c, err := r.Cookie(api.CookieSession)
		return err == nil && c.Value == "sid" && s.valid.Load()
	}
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.me.Add(1)
		fmt.Fprintf(w, `{"id":%d,"username":"a@b.com","email":"a@b.com"}`, s.userID.Load())
	})
	mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := s.items.Add(1)
		fmt.Fprintf(w, `{"call":%d,"q":%q}`, n, r.URL.Query().Get("q"))
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func testConfig(s *server) *config.Config {
	return &config.Config{
		Host:            strings.TrimPrefix(s.srv.URL, "http://"),
		LoginPath:       "/api/login",
		LogoutPath:      "/api/logout",
		CurrentUserPath: "/api/me",
		Secret:          "test-secret",
		MobileKey:       "mobile-key",
		Storage:         config.StorageMemory,
		RedisKey:        "apiclient",
		CacheTTL:        config.Duration(time.Minute),
		RequestTimeout:  config.Duration(5 * time.Second),
		AppName:         "client-test",
	}
}

func newClient(t *testing.T, s *server, cfg *config.Config, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithLogger(logger.NewTestLogger()),
		WithHTTPClient(s.srv.Client()),
		WithConnectivity(network.NewStatic(true)),
	}, opts...)
	c, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.True(t, errors.Is(err, api.ErrMissingParameters))
}

func TestNewUnknownStorage(t *testing.T) {
	s := newServer(t)
	cfg := testConfig(s)
	cfg.Storage = "tape"
	_, err := New(context.Background(), cfg)
	assert.True(t, errors.Is(err, api.ErrMissingParameters))
}

func TestDeviceIDPersisted(t *testing.T) {
	s := newServer(t)
	st := store.NewMemory()
	require.NoError(t, st.SaveSettings(context.Background(), map[string]string{SettingDeviceID: "device-42"}, nil))
	c := newClient(t, s, testConfig(s), WithStore(st))

	d := c.DeviceCredential("tok", "uuid")
	assert.True(t, d.Bound())

	id, ok, err := st.GetSetting(context.Background(), SettingDeviceID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "device-42", id)
}

func TestDeviceIDGenerated(t *testing.T) {
	s := newServer(t)
	st := store.NewMemory()
	newClient(t, s, testConfig(s), WithStore(st))

	id, ok, err := st.GetSetting(context.Background(), SettingDeviceID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestLoginAndCurrentUser(t *testing.T) {
	s := newServer(t)
	c := newClient(t, s, testConfig(s))
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, credential.Password{Username: "A@b.com", Password: "x"}))
	assert.True(t, c.Session().IsLoggedIn())
	assert.Equal(t, int64(7), c.Session().UserID())

	u, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "a@b.com", u.Username)

	u, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, int32(1), s.me.Load())
}

func TestLoginAsOtherUserDropsCachedUser(t *testing.T) {
	s := newServer(t)
	c := newClient(t, s, testConfig(s))
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, credential.Password{Username: "a", Password: "x"}))
	u, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)

	// the session expires and renewing it with the stored password fails
	s.valid.Store(false)
	s.reject.Store(true)
	_, err = c.Get(ctx, "/api/items", nil, 0)
	assert.True(t, errors.Is(err, api.ErrAuthenticationFailed))
	assert.False(t, c.Session().IsLoggedIn())

	s.reject.Store(false)
	s.userID.Store(8)
	require.NoError(t, c.Login(ctx, credential.Password{Username: "b", Password: "y"}))
	u, err = c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), u.ID)
	assert.Equal(t, int64(8), c.Cache().UserID())
	assert.Equal(t, int32(2), s.me.Load())
}

func TestCurrentUserLoggedOut(t *testing.T) {
	s := newServer(t)
	c := newClient(t, s, testConfig(s))

	_, err := c.CurrentUser(context.Background())
	assert.True(t, errors.Is(err, api.ErrAuthenticationFailed))
	assert.Equal(t, int32(0), s.me.Load())
}

func TestGetCached(t *testing.T) {
	s := newServer(t)
	c := newClient(t, s, testConfig(s))
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, credential.Password{Username: "a", Password: "x"}))

	params := &api.Params{Query: "abc"}
	body, err := c.Get(ctx, "/api/items", params, time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"call":1,"q":"abc"}`, body)

	body, err = c.Get(ctx, "/api/items", params, time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"call":1,"q":"abc"}`, body)

	body, err = c.Get(ctx, "/api/items", params, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"call":2,"q":"abc"}`, body)

	c.Logout(ctx)
	assert.False(t, c.Session().IsLoggedIn())
	_, ok := c.Cache().Get(ctx, "GET /api/items?q=abc")
	assert.False(t, ok)
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newServer(t)
	cfg := testConfig(s)
	cfg.Storage = config.StorageRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	ctx := context.Background()

	c, err := New(ctx, cfg,
		WithHTTPClient(s.srv.Client()),
		WithConnectivity(network.NewStatic(true)),
	)
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, credential.Password{Username: "a", Password: "x"}))
	require.NoError(t, c.Close())

	restored := newClient(t, s, cfg)
	assert.True(t, restored.Session().IsLoggedIn())
	assert.Equal(t, int64(7), restored.Session().UserID())
	_, isPassword := restored.Session().Credential().(credential.Password)
	assert.True(t, isPassword)
}

func TestWaitContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, make(chan error)), context.Canceled)
	assert.NoError(t, Wait(ctx, nil))
}
