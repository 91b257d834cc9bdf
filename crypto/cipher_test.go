package crypto

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("a-device-secret-that-is-long-enough")
	require.NoError(t, err)

	inputs := []string{
		"",
		"x",
		"password",
		strings.Repeat("a", 15),
		strings.Repeat("b", 16),
		strings.Repeat("c", 32),
		"has\x00sentinel",
		"\x00\x00\x00",
		strings.Repeat("\x00", 16),
		"ünïcødé パスワード",
	}
	for _, in := range inputs {
		enc, err := c.Encrypt(in)
		require.NoError(t, err)
		assert.NotEqual(t, in, enc)
		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec, "round trip of %q", in)
	}
}

func TestCipherRandomized(t *testing.T) {
	c, err := NewCipher("secret")
	require.NoError(t, err)
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCipherBlockAlignedLength(t *testing.T) {
	c, err := NewCipher("secret")
	require.NoError(t, err)
	enc, err := c.Encrypt(strings.Repeat("z", 16))
	require.NoError(t, err)
	// iv + two blocks: the aligned plaintext gets a whole padding block
	assert.Len(t, enc, 2*16*3)
}

func TestCipherWrongKey(t *testing.T) {
	a, err := NewCipher("secret-a")
	require.NoError(t, err)
	b, err := NewCipher("secret-b")
	require.NoError(t, err)
	enc, err := a.Encrypt("hello world")
	require.NoError(t, err)
	dec, err := b.Decrypt(enc)
	if err == nil {
		assert.NotEqual(t, "hello world", dec)
	}
}

func TestCipherInvalidInput(t *testing.T) {
	c, err := NewCipher("secret")
	require.NoError(t, err)

	_, err = c.Decrypt("not-hex")
	assert.True(t, errors.Is(err, ErrInvalidCiphertext))

	_, err = c.Decrypt("abcd")
	assert.True(t, errors.Is(err, ErrInvalidCiphertext))

	_, err = NewCipher("")
	assert.True(t, errors.Is(err, ErrMissingSecret))
}
