package credential

import (
	"github.com/agentuity/go-apiclient/crypto"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// BlobName is the name of the persisted credential record.
const BlobName = "api_credentials.dat"

type record struct {
	Kind     Kind   `msgpack:"kind"`
	Username string `msgpack:"username,omitempty"`
	// Secret holds the encrypted password, access token or device token.
	Secret string `msgpack:"secret,omitempty"`
	UUID   string `msgpack:"uuid,omitempty"`
}

// Codec encodes credentials for persistence. Secrets are encrypted with the
// cipher, everything else is stored in the clear.
type Codec struct {
	cipher       *crypto.Cipher
	deviceSecret string
	deviceID     string
}

// NewCodec returns a codec. deviceSecret and deviceID are attached to every
// decoded device credential.
func NewCodec(cipher *crypto.Cipher, deviceSecret, deviceID string) *Codec {
	return &Codec{cipher: cipher, deviceSecret: deviceSecret, deviceID: deviceID}
}

// NewDevice returns a device credential bound to this codec's secret and machine.
func (c *Codec) NewDevice(token, uuid string) *Device {
	return NewDevice(token, uuid, c.deviceSecret, c.deviceID)
}

func (c *Codec) seal(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return c.cipher.Encrypt(s)
}

func (c *Codec) open(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return c.cipher.Decrypt(s)
}

func (c *Codec) Encode(cred Credential) ([]byte, error) {
	var (
		rec    record
		secret string
	)
	switch v := cred.(type) {
	case Password:
		rec = record{Kind: KindPassword, Username: v.Username}
		secret = v.Password
	case ThirdParty:
		rec = record{Kind: KindThirdParty}
		secret = v.AccessToken
	case *Device:
		rec = record{Kind: KindDevice, UUID: v.UUID}
		secret = v.Token
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "cannot encode %T", cred)
	}
	sealed, err := c.seal(secret)
	if err != nil {
		return nil, errors.Wrap(err, "error encrypting credential")
	}
	rec.Secret = sealed
	return msgpack.Marshal(&rec)
}

func (c *Codec) Decode(data []byte) (Credential, error) {
	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "error decoding credential")
	}
	secret, err := c.open(rec.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "error decrypting credential")
	}
	switch rec.Kind {
	case KindPassword:
		return Password{Username: rec.Username, Password: secret}, nil
	case KindThirdParty:
		return ThirdParty{AccessToken: secret}, nil
	case KindDevice:
		return c.NewDevice(secret, rec.UUID), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "kind %d", rec.Kind)
}
