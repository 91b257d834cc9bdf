package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/crypto"
	"github.com/agentuity/go-apiclient/eventing"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/network"
	"github.com/agentuity/go-apiclient/store"
	"github.com/stretchr/testify/require"
)

// backend is a fake API server with cookie sessions.
type backend struct {
	srv *httptest.Server

	logins   atomic.Int32
	logouts  atomic.Int32
	rejected atomic.Int32

	mu           sync.Mutex
	valid        string
	userID       int
	failMessage  string
	omitUserID   bool
	gate         chan struct{}
	logoutCookie string
}

func newBackend(t *testing.T) *backend {
	b := &backend{userID: 7}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", b.login)
	mux.HandleFunc("GET /api/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logoutCookie = r.Header.Get("Cookie")
		b.mu.Unlock()
		b.logouts.Add(1)
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(api.CookieSession)
		b.mu.Lock()
		ok := err == nil && c.Value != "" && c.Value == b.valid && r.Header.Get(api.HeaderCSRFToken) != ""
		b.mu.Unlock()
		if !ok {
			b.rejected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"id":%d}`, b.userID)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	n := b.logins.Add(1)
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	if uuid, ok := body["uuid"]; ok && uuid == float64(0) {
		w.Header().Set(credential.HeaderDeviceToken, "device-token")
		w.Header().Set(credential.HeaderDeviceNewUUID, "device-uuid")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failMessage != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, `{"message":%q}`, b.failMessage)
		return
	}
	b.valid = "sid-" + strconv.Itoa(int(n))
	http.SetCookie(w, &http.Cookie{Name: api.CookieSession, Value: b.valid, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: api.CookieCSRF, Value: "csrf-" + strconv.Itoa(int(n)), Path: "/"})
	if !b.omitUserID {
		w.Header().Set(api.HeaderUserID, strconv.Itoa(b.userID))
	}
}

// expire invalidates the current server side session.
func (b *backend) expire() {
	b.mu.Lock()
	b.valid = ""
	b.mu.Unlock()
}

func (b *backend) hold() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	return b.gate
}

func (b *backend) set(fn func(b *backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

type harness struct {
	t       *testing.T
	backend *backend
	store   store.Store
	codec   *credential.Codec
	online  *network.Static
	log     *logger.TestLogger
	events  chan eventing.Event
	manager *Manager
}

func newHarness(t *testing.T, b *backend, st store.Store) *harness {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	h := &harness{
		t:       t,
		backend: b,
		store:   st,
		online:  network.NewStatic(true),
		log:     logger.NewTestLogger(),
		events:  make(chan eventing.Event, 32),
	}
	cipher, err := crypto.NewCipher("persist-secret")
	require.NoError(t, err)
	h.codec = credential.NewCodec(cipher, "device-secret", "machine-1")

	exec, err := api.New(api.Config{
		Host:         strings.TrimPrefix(b.srv.URL, "http://"),
		AppName:      "session-test",
		Client:       b.srv.Client(),
		Connectivity: h.online,
		Logger:       h.log,
	})
	require.NoError(t, err)

	bus := eventing.NewLocalBus(context.Background(), h.log)
	t.Cleanup(func() { bus.Close() })
	_, err = bus.Subscribe(context.Background(), eventing.Inline, func(ctx context.Context, ev eventing.Event) {
		h.events <- ev
	})
	require.NoError(t, err)

	h.manager, err = New(context.Background(), Config{
		Executor:   exec,
		Store:      st,
		Codec:      h.codec,
		Bus:        bus,
		Logger:     h.log,
		LoginPath:  "/api/login",
		LogoutPath: "/api/logout",
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.manager.Close() })
	return h
}

func (h *harness) await(w api.Waiter) error {
	h.t.Helper()
	require.NotNil(h.t, w)
	select {
	case err := <-w:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for login")
		return nil
	}
}

func (h *harness) nextEvent() eventing.Event {
	h.t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(5 * time.Second):
		h.t.Fatal("timed out waiting for event")
		return eventing.Event{}
	}
}

func (h *harness) noEvent() {
	h.t.Helper()
	select {
	case ev := <-h.events:
		h.t.Fatalf("unexpected event %s", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) me(ctx context.Context) (string, error) {
	return h.manager.Executor().Send(ctx, &api.Request{Action: api.ActionRead, Path: "/api/me", Authenticated: true})
}
