package session

import (
	"net/http"

	"github.com/agentuity/go-apiclient/api"
	"github.com/cockroachdb/errors"
)

// Tokens returns the cookies of the current session.
func (m *Manager) Tokens() api.Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return api.Tokens{SessionID: m.sessionID, CSRFToken: m.csrfToken, Generation: m.generation}
}

// AwaitAuthentication queues the caller behind a login in progress.
func (m *Manager) AwaitAuthentication() api.Waiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inProgress {
		return nil
	}
	return m.enqueueLocked()
}

// ObserveResponse starts a renewal with the stored credential when an
// exchange made with the current session is rejected as unauthenticated.
// Every caller it returns a Waiter to is woken exactly once.
func (m *Manager) ObserveResponse(status int, sent api.Tokens) api.Waiter {
	if status != http.StatusUnauthorized {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inProgress {
		return m.enqueueLocked()
	}
	if sent.Generation != m.generation {
		// Already renewed since the request was sent.
		return done(nil)
	}
	if m.cred == nil && m.userID == 0 {
		return done(errors.Wrap(api.ErrAuthenticationFailed, "not logged in"))
	}
	m.logger.Debug("session rejected (%s), renewing", sent)
	m.sessionID = ""
	m.csrfToken = ""
	m.generation++
	return m.startLocked(m.cred)
}
