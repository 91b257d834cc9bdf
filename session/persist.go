package session

import (
	"context"
	"strconv"

	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/store"
	"github.com/cockroachdb/errors"
)

type snapshot struct {
	seq        uint64
	sessionID  string
	csrfToken  string
	userID     int64
	prevUserID int64
	cred       credential.Credential
}

func (m *Manager) snapshotLocked() snapshot {
	m.seq++
	return snapshot{
		seq:        m.seq,
		sessionID:  m.sessionID,
		csrfToken:  m.csrfToken,
		userID:     m.userID,
		prevUserID: m.prevUserID,
		cred:       m.cred,
	}
}

// persist writes s unless a newer snapshot was written already. Failures
// are logged; the in-memory session stays authoritative.
func (m *Manager) persist(ctx context.Context, s snapshot) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if s.seq <= m.persisted {
		return
	}
	m.persisted = s.seq

	set := map[string]string{}
	var remove []string
	put := func(key, val string) {
		if val != "" {
			set[key] = val
		} else {
			remove = append(remove, key)
		}
	}
	putInt := func(key string, val int64) {
		if val != 0 {
			set[key] = strconv.FormatInt(val, 10)
		} else {
			remove = append(remove, key)
		}
	}
	put(SettingSessionID, s.sessionID)
	put(SettingCSRFToken, s.csrfToken)
	putInt(SettingUserID, s.userID)
	putInt(SettingPrevUserID, s.prevUserID)
	if err := m.store.SaveSettings(ctx, set, remove); err != nil {
		m.logger.Error("error saving session: %s", err)
	}

	if s.cred == nil || m.codec == nil {
		if err := m.store.DeleteBlob(ctx, credential.BlobName); err != nil {
			m.logger.Error("error deleting credential: %s", err)
		}
		return
	}
	buf, err := m.codec.Encode(s.cred)
	if err != nil {
		m.logger.Error("error encoding credential: %s", err)
		return
	}
	if err := m.store.WriteBlob(ctx, credential.BlobName, buf); err != nil {
		m.logger.Error("error saving credential: %s", err)
	}
}

func (m *Manager) load(ctx context.Context) error {
	sid, ok, err := m.store.GetSetting(ctx, SettingSessionID)
	if err != nil {
		return errors.Wrap(err, "error loading session")
	}
	if ok && sid != "" {
		m.sessionID = sid
		if m.csrfToken, _, err = m.store.GetSetting(ctx, SettingCSRFToken); err != nil {
			return errors.Wrap(err, "error loading session")
		}
		if m.userID, err = store.GetInt(ctx, m.store, SettingUserID); err != nil {
			return errors.Wrap(err, "error loading session")
		}
	}
	if m.prevUserID, err = store.GetInt(ctx, m.store, SettingPrevUserID); err != nil {
		return errors.Wrap(err, "error loading session")
	}
	if m.codec == nil {
		return nil
	}
	buf, err := m.store.ReadBlob(ctx, credential.BlobName)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		m.logger.Warn("error reading credential: %s", err)
		return nil
	}
	if m.cred, err = m.codec.Decode(buf); err != nil {
		m.logger.Warn("discarding unreadable credential: %s", err)
	}
	return nil
}
