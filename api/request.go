package api

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
)

// SignMode selects how a request body is signed.
type SignMode int

const (
	SignNone SignMode = iota
	// SignBody sends the digest of the body and salt.
	SignBody
	// SignBodyWithNonce also mixes in and sends a fresh nonce.
	SignBodyWithNonce
)

// Tokens are the session cookies attached to an exchange. Generation
// identifies the session they belong to so a late 401 for a session that
// was already renewed does not trigger a second renewal.
type Tokens struct {
	SessionID  string
	CSRFToken  string
	Generation uint64
}

// Request describes a single API call.
type Request struct {
	Action Action
	// Path is appended to the configured host and must start with "/".
	Path   string
	Params *Params
	Body   []byte
	// Secure forces https for this request.
	Secure        bool
	Authenticated bool
	Sign          SignMode
	// Header is applied after the fixed header set.
	Header http.Header
	// Tokens overrides the session tokens for this request. An empty value
	// sends no cookies.
	Tokens *Tokens
}

// NewJSONRequest returns a request with v encoded as its JSON body.
func NewJSONRequest(action Action, path string, v any) (*Request, error) {
	req := &Request{Action: action, Path: path}
	if v != nil {
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "error marshalling request body")
		}
		req.Body = buf
	}
	return req, nil
}

// Waiter completes once with the outcome of a login or renewal. A nil error
// means the suspended request may proceed.
type Waiter <-chan error

// Authenticator is the session side of the request protocol.
type Authenticator interface {
	// Tokens returns the current session tokens.
	Tokens() Tokens
	// AwaitAuthentication returns nil when an authenticated request may be sent
	// now, or a Waiter for the login or renewal in progress.
	AwaitAuthentication() Waiter
	// ObserveResponse inspects the status of an authenticated exchange made with
	// sent. It returns nil when the response stands, or a Waiter that completes
	// when the request can be resent against a renewed session.
	ObserveResponse(status int, sent Tokens) Waiter
}
