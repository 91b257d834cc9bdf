package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 digest of the request body.
	HeaderSignature = "X-Hmac"
	// HeaderNonce carries the nonce mixed into the digest by SignWithNonce.
	HeaderNonce = "X-Hmac-Nonce"
)

var ErrMissingSigningKey = errors.New("crypto: signing key is required")

// Signer produces request body signatures the backend can verify with the shared key.
type Signer struct {
	key  []byte
	salt []byte
}

// NewSigner returns a Signer for key. An empty salt is not mixed in.
func NewSigner(key, salt string) (*Signer, error) {
	if key == "" {
		return nil, ErrMissingSigningKey
	}
	return &Signer{key: []byte(key), salt: []byte(salt)}, nil
}

func (s *Signer) digest(body []byte, nonce string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(bytes.TrimRight(body, "\r\n"))
	if len(s.salt) > 0 {
		mac.Write(s.salt)
	}
	if nonce != "" {
		mac.Write([]byte(nonce))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign returns the digest of body and the configured salt. Trailing CR and LF
// bytes of body are ignored.
func (s *Signer) Sign(body []byte) string {
	return s.digest(body, "")
}

// SignWithNonce is Sign with a fresh random nonce mixed in after the salt.
// Both the digest and the nonce must be transmitted.
func (s *Signer) SignWithNonce(body []byte) (digest string, nonce string) {
	nonce = uuid.NewString()
	return s.digest(body, nonce), nonce
}

// Verify reports whether digest matches body, using nonce when non-empty.
func (s *Signer) Verify(body []byte, nonce, digest string) bool {
	return hmac.Equal([]byte(s.digest(body, nonce)), []byte(digest))
}
