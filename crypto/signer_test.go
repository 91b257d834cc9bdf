package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignDeterministic(t *testing.T) {
	s, err := NewSigner("key", "salt")
	require.NoError(t, err)
	body := []byte(`{"name":"value"}`)
	assert.Equal(t, s.Sign(body), s.Sign(body))
	assert.Len(t, s.Sign(body), 64)
}

func TestSignIgnoresTrailingNewlines(t *testing.T) {
	s, err := NewSigner("key", "salt")
	require.NoError(t, err)
	body := []byte(`{"a":1}`)
	base := s.Sign(body)
	assert.Equal(t, base, s.Sign([]byte("{\"a\":1}\n")))
	assert.Equal(t, base, s.Sign([]byte("{\"a\":1}\r\n")))
	assert.Equal(t, base, s.Sign([]byte("{\"a\":1}\n\r\n\n")))
	assert.NotEqual(t, base, s.Sign([]byte("\n{\"a\":1}")))
}

func TestSignMatchesHMAC(t *testing.T) {
	s, err := NewSigner("key", "salt")
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte("body"))
	mac.Write([]byte("salt"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), s.Sign([]byte("body\n")))

	unsalted, err := NewSigner("key", "")
	require.NoError(t, err)
	mac = hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte("body"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), unsalted.Sign([]byte("body")))
}

func TestSignWithNonce(t *testing.T) {
	s, err := NewSigner("key", "salt")
	require.NoError(t, err)
	body := []byte("payload")
	d1, n1 := s.SignWithNonce(body)
	d2, n2 := s.SignWithNonce(body)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, d1, d2)
	assert.NotEqual(t, s.Sign(body), d1)
	assert.True(t, s.Verify(body, n1, d1))
	assert.True(t, s.Verify(body, n2, d2))
	assert.False(t, s.Verify(body, n1, d2))
}

func TestNewSignerRequiresKey(t *testing.T) {
	_, err := NewSigner("", "salt")
	assert.True(t, errors.Is(err, ErrMissingSigningKey))
}
