package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// Call is a single request in flight. Abort terminates its transport
// without touching session state.
type Call struct {
	exec *Executor
	req  *Request

	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

// NewCall prepares req for sending.
func (e *Executor) NewCall(req *Request) *Call {
	return &Call{exec: e, req: req}
}

// Abort terminates the call. A call aborted before Do never sends.
func (c *Call) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Aborted reports whether Abort was called.
func (c *Call) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Call) start(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return nil, nil, context.Canceled
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return ctx, cancel, nil
}

func wait(ctx context.Context, w Waiter) error {
	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do sends the request. Authenticated requests wait for a login in progress
// and are resent once after a session renewal. Read actions return the
// response body; a status of 400 or above is returned as *Error with the
// raw body attached.
func (c *Call) Do(ctx context.Context) (string, error) {
	ctx, cancel, err := c.start(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	e := c.exec
	auth := e.auth
	if !c.req.Authenticated || c.req.Tokens != nil {
		auth = nil
	}
	if auth != nil {
		if w := auth.AwaitAuthentication(); w != nil {
			e.logger.Trace("waiting for authentication before %s %s", c.req.Action.Method(), c.req.Path)
			if err := wait(ctx, w); err != nil {
				return "", err
			}
		}
	}

	renewed := false
	for {
		tokens := e.tokens(c.req)
		resp, err := e.Exchange(ctx, c.req, tokens)
		if err != nil {
			return "", err
		}
		if auth != nil {
			if renewed && resp.Status == http.StatusUnauthorized {
				e.logger.Debug("request %s %s rejected after renewal", resp.Method, resp.URL)
				return "", NewError(ErrAuthenticationFailed, resp.Method, resp.URL, resp.Status, string(resp.Body), nil)
			}
			if w := auth.ObserveResponse(resp.Status, tokens); w != nil {
				e.logger.Debug("session expired, waiting for renewal before retrying %s %s", resp.Method, resp.URL)
				if err := wait(ctx, w); err != nil {
					return "", err
				}
				renewed = true
				continue
			}
		}
		if err := resp.Error(); err != nil {
			return "", err
		}
		if c.req.Action.Reads() {
			return string(resp.Body), nil
		}
		return "", nil
	}
}

// IsAborted reports whether err is the result of an aborted or cancelled call.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}
