// Package session owns the authenticated session of the API client. It logs
// in with a credential, persists the session tokens, renews an expired
// session transparently for the requests that hit it, and publishes the
// lifecycle on an event bus.
package session

import (
	"context"
	"sync"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/eventing"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/store"
	"github.com/cockroachdb/errors"
)

// Settings written by the manager.
const (
	SettingSessionID  = "SESSION_ID"
	SettingCSRFToken  = "SESSION_CSRF_TOKEN"
	SettingUserID     = "SESSION_USER_ID"
	SettingPrevUserID = "SESSION_PREV_USER_ID"
)

// Status is the lifecycle state of the session.
type Status int

const (
	LoggedOut Status = iota
	LoggingIn
	LoggedIn
	Renewing
)

func (s Status) String() string {
	switch s {
	case LoggedOut:
		return "logged out"
	case LoggingIn:
		return "logging in"
	case LoggedIn:
		return "logged in"
	case Renewing:
		return "renewing"
	}
	return "unknown"
}

// Config configures a Manager.
type Config struct {
	// Executor sends the login and logout requests. Its authenticator is ignored.
	Executor *api.Executor
	Store    store.Store
	// Codec persists the credential. A nil codec keeps the credential in memory only.
	Codec      *credential.Codec
	Bus        eventing.Bus
	Logger     logger.Logger
	LoginPath  string
	LogoutPath string
	// HTTPSLogin sends login and logout over https.
	HTTPSLogin bool
}

// Manager is the single session of the process. It implements
// api.Authenticator for the executor returned by Executor.
type Manager struct {
	base       *api.Executor
	exec       *api.Executor
	store      store.Store
	codec      *credential.Codec
	bus        eventing.Bus
	logger     logger.Logger
	loginPath  string
	logoutPath string
	httpsLogin bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	sessionID  string
	csrfToken  string
	userID     int64
	prevUserID int64
	cred       credential.Credential
	generation uint64
	inProgress bool
	renewing   bool
	pending    []chan error
	lastErr    error
	seq        uint64

	persistMu sync.Mutex
	persisted uint64
}

var _ api.Authenticator = (*Manager)(nil)

// New returns a manager restored from the persisted state in cfg.Store.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Executor == nil || cfg.Store == nil || cfg.Bus == nil {
		return nil, errors.Wrap(api.ErrMissingParameters, "executor, store and bus are required")
	}
	if cfg.LoginPath == "" || cfg.LogoutPath == "" {
		return nil, errors.Wrap(api.ErrMissingParameters, "login and logout paths are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewConsoleLogger(logger.LevelNone)
	}
	m := &Manager{
		base:       cfg.Executor,
		store:      cfg.Store,
		codec:      cfg.Codec,
		bus:        cfg.Bus,
		logger:     log.With(map[string]interface{}{"component": "session"}),
		loginPath:  cfg.LoginPath,
		logoutPath: cfg.LogoutPath,
		httpsLogin: cfg.HTTPSLogin,
	}
	m.exec = cfg.Executor.WithAuthenticator(m)
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return m, nil
}

// Executor returns the executor whose authenticated requests use this session.
func (m *Manager) Executor() *api.Executor {
	return m.exec
}

func (m *Manager) loggedInLocked() bool {
	return m.sessionID != ""
}

// IsLoggedIn reports whether a session id is held.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedInLocked()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.inProgress && m.renewing:
		return Renewing
	case m.inProgress:
		return LoggingIn
	case m.loggedInLocked():
		return LoggedIn
	}
	return LoggedOut
}

func (m *Manager) UserID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// PreviousUserID returns the user that held the session before the current one.
func (m *Manager) PreviousUserID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prevUserID
}

// Credential returns the stored credential, or nil.
func (m *Manager) Credential() credential.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// LastError returns the failure of the last login, or nil after a success.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Close cancels background work and waits for it to finish. Requests waiting
// on a login in progress are failed.
func (m *Manager) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}
