// Package credential holds the credential kinds the session can log in with.
// Each kind builds its own login payload and, where the backend issues one,
// answers the authentication challenge.
package credential

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

// Kind identifies a credential variant. The values are shared with the backend.
type Kind int

const (
	KindNone       Kind = 0
	KindPassword   Kind = 100
	KindThirdParty Kind = 101
	KindDevice     Kind = 102
)

func (k Kind) String() string {
	switch k {
	case KindPassword:
		return "password"
	case KindThirdParty:
		return "third-party"
	case KindDevice:
		return "device"
	case KindNone:
		return "none"
	}
	return "unknown"
}

// Device challenge headers.
const (
	HeaderDeviceToken   = "X-Authmobile-Token"
	HeaderDeviceNewUUID = "X-Authmobile-New-Uuid"
)

var (
	// ErrNoChallenge is returned by credentials that cannot answer a challenge.
	ErrNoChallenge  = errors.New("credential: challenge not supported")
	ErrUnknownKind  = errors.New("credential: unknown kind")
	ErrIncompatible = errors.New("credential: challenge headers missing")
)

// Credential is implemented by Password, ThirdParty and *Device only.
type Credential interface {
	Kind() Kind
	// LoginPayload returns the JSON body of the login request.
	LoginPayload() ([]byte, error)
	// ChallengePayload returns the JSON body answering the challenge carried
	// in the headers of a 401 login response.
	ChallengePayload(h http.Header) ([]byte, error)
	sealed()
}

// Password logs in with a username and password.
type Password struct {
	Username string
	Password string
}

var _ Credential = Password{}

func (Password) Kind() Kind { return KindPassword }

func (p Password) LoginPayload() ([]byte, error) {
	return json.Marshal(map[string]string{
		"username": strings.ToLower(p.Username),
		"password": p.Password,
	})
}

func (Password) ChallengePayload(http.Header) ([]byte, error) { return nil, ErrNoChallenge }

func (Password) sealed() {}

// ThirdParty logs in with an access token issued by an identity provider.
type ThirdParty struct {
	AccessToken string
}

var _ Credential = ThirdParty{}

func (ThirdParty) Kind() Kind { return KindThirdParty }

func (t ThirdParty) LoginPayload() ([]byte, error) {
	return json.Marshal(map[string]string{"access_token": t.AccessToken})
}

func (ThirdParty) ChallengePayload(http.Header) ([]byte, error) { return nil, ErrNoChallenge }

func (ThirdParty) sealed() {}

// Device logs in with a token bound to this machine. An unbound device
// sends an empty payload, and the backend answers with a challenge carrying
// the token and, for a new device, its uuid. The challenge updates the
// device, so it must be persisted after a successful login. The session
// manager answers challenges on a Clone and keeps the updated copy.
type Device struct {
	Token string
	UUID  string

	secret   string
	deviceID string
	newUUID  bool
}

var _ Credential = (*Device)(nil)

// NewDevice returns a device credential hashed with secret and deviceID.
func NewDevice(token, uuid, secret, deviceID string) *Device {
	return &Device{Token: token, UUID: uuid, secret: secret, deviceID: deviceID}
}

func (*Device) Kind() Kind { return KindDevice }

// Bound reports whether the device has both a token and a uuid.
func (d *Device) Bound() bool {
	return d.Token != "" && d.UUID != ""
}

func (d *Device) hash() string {
	h := sha1.New()
	h.Write([]byte(d.UUID))
	h.Write([]byte(d.deviceID))
	h.Write([]byte(d.Token))
	h.Write([]byte(d.secret))
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Device) LoginPayload() ([]byte, error) {
	if !d.Bound() {
		return json.Marshal(map[string]int{"uuid": 0, "hash": 0})
	}
	payload := map[string]string{"uuid": d.UUID, "hash": d.hash()}
	if d.newUUID {
		payload["device"] = d.deviceID
	}
	return json.Marshal(payload)
}

func (d *Device) ChallengePayload(h http.Header) ([]byte, error) {
	token := h.Get(HeaderDeviceToken)
	if token == "" {
		return nil, ErrIncompatible
	}
	d.Token = token
	d.newUUID = false
	if d.UUID == "" {
		d.UUID = h.Get(HeaderDeviceNewUUID)
		if d.UUID == "" {
			return nil, ErrIncompatible
		}
		d.newUUID = true
	}
	return d.LoginPayload()
}

func (*Device) sealed() {}

// Clone returns a copy of c that a challenge can update without touching c.
func Clone(c Credential) Credential {
	if d, ok := c.(*Device); ok && d != nil {
		cp := *d
		return &cp
	}
	return c
}

// MachineID returns a stable identifier of this host, or a random uuid
// when the host does not expose one.
func MachineID(ctx context.Context) string {
	if id, err := host.HostIDWithContext(ctx); err == nil && id != "" {
		return id
	}
	return uuid.NewString()
}
