package session

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/eventing"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func done(err error) api.Waiter {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

func (m *Manager) enqueueLocked() api.Waiter {
	ch := make(chan error, 1)
	m.pending = append(m.pending, ch)
	return ch
}

// Login starts logging in with cred in the background and returns a Waiter
// for the outcome. When already logged in the Waiter completes at once with
// nil. When a login is in progress the Waiter joins it and cred is ignored.
func (m *Manager) Login(cred credential.Credential) api.Waiter {
	if cred == nil {
		return done(errors.Wrap(api.ErrMissingParameters, "credential is required"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inProgress {
		return m.enqueueLocked()
	}
	if m.loggedInLocked() {
		return done(nil)
	}
	return m.startLocked(cred)
}

func (m *Manager) startLocked(cred credential.Credential) api.Waiter {
	m.inProgress = true
	m.renewing = m.userID != 0
	m.cred = cred
	w := m.enqueueLocked()
	m.wg.Add(1)
	// the login goroutine owns its copy until succeed stores it
	go m.run(credential.Clone(cred))
	return w
}

type loginResult struct {
	sessionID string
	csrfToken string
	userID    int64
}

func (m *Manager) run(cred credential.Credential) {
	defer m.wg.Done()
	ctx, span := tracer.Start(m.ctx, "session.login")
	defer span.End()

	if cred == nil {
		m.fail(ctx, errors.Wrap(api.ErrAuthenticationFailed, "no stored credential to renew the session"))
		span.SetStatus(codes.Error, "no credential")
		return
	}
	span.SetAttributes(attribute.String("credential.kind", cred.Kind().String()))

	res, err := m.authenticate(ctx, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		m.fail(ctx, err)
		return
	}
	span.SetAttributes(attribute.Int64("user.id", res.userID))
	m.succeed(ctx, cred, res)
}

func (m *Manager) exchange(ctx context.Context, body []byte) (*api.Response, error) {
	req := &api.Request{
		Action: api.ActionCreate,
		Path:   m.loginPath,
		Body:   body,
		Secure: m.httpsLogin,
		Tokens: &api.Tokens{},
	}
	return m.base.Exchange(ctx, req, api.Tokens{})
}

func (m *Manager) authenticate(ctx context.Context, cred credential.Credential) (*loginResult, error) {
	body, err := cred.LoginPayload()
	if err != nil {
		return nil, &api.Error{Kind: api.ErrMissingParameters, Cause: err}
	}
	resp, err := m.exchange(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		body, err = cred.ChallengePayload(resp.Header)
		if err != nil {
			m.logger.Debug("cannot answer login challenge: %s", err)
			return nil, m.rejected(ctx, resp)
		}
		m.logger.Debug("answering login challenge")
		if resp, err = m.exchange(ctx, body); err != nil {
			return nil, err
		}
	}
	if resp.Status >= 400 {
		return nil, m.rejected(ctx, resp)
	}

	var res loginResult
	for _, line := range resp.Header.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil || c.Value == "" {
			continue
		}
		switch c.Name {
		case api.CookieSession:
			res.sessionID = c.Value
		case api.CookieCSRF:
			res.csrfToken = c.Value
		}
	}
	res.userID, _ = strconv.ParseInt(resp.Header.Get(api.HeaderUserID), 10, 64)
	if res.sessionID == "" || res.userID == 0 {
		return nil, api.NewError(api.ErrBadResponse, resp.Method, resp.URL, resp.Status, "", errors.New("session cookie or user id missing"))
	}
	return &res, nil
}

// rejected classifies a failed login response: no connectivity first, then
// an explicit server message, then a bad connection.
func (m *Manager) rejected(ctx context.Context, resp *api.Response) error {
	e := api.NewError(api.ErrBadConnection, resp.Method, resp.URL, resp.Status, string(resp.Body), nil)
	switch {
	case !m.base.Connected(ctx):
		e.Kind = api.ErrNoConnectivity
	case e.Message != "":
		e.Kind = api.ErrAuthenticationFailed
	}
	return e
}

func (m *Manager) wake(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}

func (m *Manager) succeed(ctx context.Context, cred credential.Credential, res *loginResult) {
	m.mu.Lock()
	renewal := m.userID != 0
	lastUser := m.prevUserID
	m.prevUserID = m.userID
	m.userID = res.userID
	m.sessionID = res.sessionID
	m.csrfToken = res.csrfToken
	m.cred = cred
	m.generation++
	m.inProgress = false
	m.renewing = false
	m.lastErr = nil
	waiters := m.pending
	m.pending = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, snap)
	if renewal {
		m.logger.Debug("session renewed for user %d", res.userID)
	} else {
		m.logger.Info("logged in as user %d", res.userID)
		m.publish(ctx, eventing.Event{
			Type:           eventing.SessionStarted,
			UserID:         res.userID,
			PreviousUserID: lastUser,
			CredentialKind: int(cred.Kind()),
		})
	}
	m.wake(waiters, nil)
}

func (m *Manager) fail(ctx context.Context, cause error) {
	if !m.base.Connected(ctx) && !errors.Is(cause, api.ErrNoConnectivity) {
		cause = &api.Error{Kind: api.ErrNoConnectivity, Cause: cause}
	}

	m.mu.Lock()
	renewal := m.userID != 0
	var kind credential.Kind
	if m.cred != nil {
		kind = m.cred.Kind()
	}
	m.prevUserID = m.userID
	m.userID = 0
	m.sessionID = ""
	m.csrfToken = ""
	m.cred = nil
	m.generation++
	m.inProgress = false
	m.renewing = false
	m.lastErr = cause
	waiters := m.pending
	m.pending = nil
	snap := m.snapshotLocked()
	prev := m.prevUserID
	m.mu.Unlock()

	desc := api.Describe(cause)
	ev := eventing.Event{PreviousUserID: prev, CredentialKind: int(kind), Error: desc}
	if renewal {
		m.logger.Warn("session renewal failed: %s", cause)
		m.persist(ctx, snap)
		ev.Type = eventing.SessionEnded
	} else {
		m.logger.Warn("login failed: %s", cause)
		ev.Type = eventing.SessionFailed
	}
	m.publish(ctx, ev)
	m.wake(waiters, &api.Error{Kind: api.ErrAuthenticationFailed, Cause: cause})
}

// Logout ends the session at once and notifies the server in the
// background. It does nothing when logged out or while a login is in progress.
func (m *Manager) Logout() {
	m.mu.Lock()
	if !m.loggedInLocked() || m.inProgress {
		m.mu.Unlock()
		return
	}
	tokens := api.Tokens{SessionID: m.sessionID, CSRFToken: m.csrfToken, Generation: m.generation}
	var kind credential.Kind
	if m.cred != nil {
		kind = m.cred.Kind()
	}
	m.prevUserID = m.userID
	m.userID = 0
	m.sessionID = ""
	m.csrfToken = ""
	m.cred = nil
	m.generation++
	snap := m.snapshotLocked()
	prev := m.prevUserID
	m.wg.Add(1)
	m.mu.Unlock()

	ctx := m.ctx
	m.persist(ctx, snap)
	m.logger.Info("logged out user %d", prev)
	m.publish(ctx, eventing.Event{Type: eventing.SessionEnded, PreviousUserID: prev, CredentialKind: int(kind)})

	go func() {
		defer m.wg.Done()
		req := &api.Request{Action: api.ActionRead, Path: m.logoutPath, Secure: m.httpsLogin, Tokens: &tokens}
		if _, err := m.base.Send(ctx, req); err != nil {
			m.logger.Debug("logout notification failed: %s", err)
		}
	}()
}

func (m *Manager) publish(ctx context.Context, ev eventing.Event) {
	if err := m.bus.Publish(ctx, ev); err != nil {
		m.logger.Debug("error publishing %s: %s", ev, err)
	}
}
