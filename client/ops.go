package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/cache"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/cockroachdb/errors"
)

const currentUserKey = "current_user"

// User is the account returned by the current user endpoint.
type User struct {
	ID        int64  `json:"id" msgpack:"id"`
	Username  string `json:"username,omitempty" msgpack:"username,omitempty"`
	Email     string `json:"email,omitempty" msgpack:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" msgpack:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" msgpack:"last_name,omitempty"`
}

// Wait blocks until w completes or ctx is done.
func Wait(ctx context.Context, w api.Waiter) error {
	if w == nil {
		return nil
	}
	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login logs in with cred and waits for the outcome. Session scoped cache
// entries of another user are gone when it returns.
func (c *Client) Login(ctx context.Context, cred credential.Credential) error {
	if err := Wait(ctx, c.session.Login(cred)); err != nil {
		return err
	}
	if userID := c.session.UserID(); userID != 0 {
		c.cache.UserStarted(ctx, userID)
	}
	return nil
}

// DeviceCredential returns a device credential bound to this installation.
// Empty token and uuid start a device binding challenge.
func (c *Client) DeviceCredential(token, uuid string) *credential.Device {
	return c.codec.NewDevice(token, uuid)
}

// Logout ends the session and drops session scoped cache entries.
func (c *Client) Logout(ctx context.Context) {
	c.session.Logout()
	c.cache.FlushSessionScoped(ctx)
}

// Get reads path as an authenticated request. A positive ttl serves the
// body from the response cache and caches it for the current user.
func (c *Client) Get(ctx context.Context, path string, params *api.Params, ttl time.Duration) (string, error) {
	fetch := func(ctx context.Context) (string, bool, error) {
		body, err := c.Executor().NewCall(&api.Request{
			Action:        api.ActionRead,
			Path:          path,
			Params:        params,
			Authenticated: true,
		}).Do(ctx)
		return body, err == nil, err
	}
	if ttl <= 0 {
		body, _, err := fetch(ctx)
		return body, err
	}
	key := "GET " + path
	if q := params.Values().Encode(); q != "" {
		key += "?" + q
	}
	_, body, err := cache.Exec(ctx, cache.CacheConfig{Key: key, Expires: ttl, SessionScoped: true}, c.cache, fetch)
	return body, err
}

// CurrentUser returns the logged in account, cached for the configured TTL.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c.config.CurrentUserPath == "" {
		return nil, errors.Wrap(api.ErrMissingParameters, "current user path is not configured")
	}
	_, user, err := cache.Exec(ctx, cache.CacheConfig{Key: currentUserKey, Expires: c.config.CacheTTL.Std(), SessionScoped: true}, c.cache,
		func(ctx context.Context) (*User, bool, error) {
			body, err := c.Executor().NewCall(&api.Request{
				Action:        api.ActionRead,
				Path:          c.config.CurrentUserPath,
				Authenticated: true,
			}).Do(ctx)
			if err != nil {
				return nil, false, err
			}
			var u User
			if err := json.Unmarshal([]byte(body), &u); err != nil {
				return nil, false, api.NewError(api.ErrBadResponse, "GET", c.config.CurrentUserPath, 200, body, err)
			}
			return &u, true, nil
		})
	if err != nil {
		return nil, err
	}
	return user, nil
}
