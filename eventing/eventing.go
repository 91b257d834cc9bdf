package eventing

import (
	"context"
	"strconv"
)

// Type names a session lifecycle notification.
type Type string

const (
	// SessionStarted fires after a first login succeeds. Renewals do not fire it.
	SessionStarted Type = "session.started"
	// SessionEnded fires on logout and when a renewal of an existing session fails.
	SessionEnded Type = "session.ended"
	// SessionFailed fires when a first login fails.
	SessionFailed Type = "session.failed"
)

// Headers represents event headers that can be used for both map operations and propagation
type Headers map[string]string

func (h Headers) Get(key string) string {
	return h[key]
}

func (h Headers) Set(key string, value string) {
	h[key] = value
}

func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

func (h Headers) clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Event is a session lifecycle notification.
type Event struct {
	Type           Type
	UserID         int64
	// PreviousUserID is the last user that held the session. For
	// SessionStarted this may be a user whose session ended earlier, so it
	// can differ from the session manager's PreviousUserID accessor, which
	// reports the user the new session directly replaced.
	PreviousUserID int64
	CredentialKind int
	// Error is a human readable description for SessionEnded and SessionFailed.
	Error   string
	Headers Headers
}

func (e Event) String() string {
	s := string(e.Type) + " user=" + strconv.FormatInt(e.UserID, 10) + " previous=" + strconv.FormatInt(e.PreviousUserID, 10)
	if e.Error != "" {
		s += " error=" + strconv.Quote(e.Error)
	}
	return s
}

// Handler receives events on the execution context chosen at subscription.
type Handler func(ctx context.Context, ev Event)

type Subscriber interface {
	// Close stops the subscriber. Events not yet delivered are dropped.
	Close() error
}

// Bus defines the interface for session event delivery
type Bus interface {
	// Publish enqueues ev for every matching subscriber and returns without
	// waiting for delivery.
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers cb for the given types, or for every type when none
	// are given. cb runs through d, in publish order.
	Subscribe(ctx context.Context, d Dispatcher, cb Handler, types ...Type) (Subscriber, error)
	// Close closes the bus and every subscriber
	Close() error
}
