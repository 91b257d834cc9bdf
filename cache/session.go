package cache

import (
	"context"
	"strconv"
)

// UserStarted flushes session scoped entries when userID is not the user
// they were written for, then records userID. The session started event
// triggers it too; calling it directly makes the flush visible at once.
func (c *ResponseCache) UserStarted(ctx context.Context, userID int64) {
	c.mutex.Lock()
	known := c.userID
	c.mutex.Unlock()
	if userID == known {
		return
	}
	n := c.flush(ctx, func(m *meta) bool { return m.SessionScoped })
	c.logger.Debug("user changed from %d to %d, flushed %d session entries", known, userID, n)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.userID = userID
	if err := c.store.SaveSettings(ctx, map[string]string{SettingUserID: strconv.FormatInt(userID, 10)}, nil); err != nil {
		c.logger.Warn("error saving cache user: %s", err)
	}
}
