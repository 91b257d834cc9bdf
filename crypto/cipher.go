package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrMissingSecret     = errors.New("crypto: secret is required")
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
)

// hkdfInfo separates keys derived for persisted records from any other use of the secret.
const hkdfInfo = "apiclient-persisted-v1"

// sentinel terminates the plaintext inside the padded block. Padding bytes
// that follow it are drawn from lowercase letters and never equal it.
const sentinel = 0x00

const padAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Cipher encrypts small strings, such as credential secrets, for storage at rest.
// It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// NewCipher derives an AES-256 key from secret with HKDF-SHA256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, errors.Wrap(err, "crypto: deriving key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "crypto: creating block cipher")
	}
	return &Cipher{block: block}, nil
}

func pad(plain []byte) ([]byte, error) {
	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	random := make([]byte, padLen-1)
	if _, err := rand.Read(random); err != nil {
		return nil, errors.Wrap(err, "crypto: generating padding")
	}
	out := make([]byte, 0, len(plain)+padLen)
	out = append(out, plain...)
	out = append(out, sentinel)
	for _, b := range random {
		out = append(out, padAlphabet[int(b)%len(padAlphabet)])
	}
	return out, nil
}

func unpad(padded []byte) ([]byte, error) {
	i := bytes.LastIndexByte(padded, sentinel)
	if i < 0 || len(padded)-i > aes.BlockSize {
		return nil, ErrInvalidCiphertext
	}
	return padded[:i], nil
}

// Encrypt returns the hex encoding of a random IV followed by the CBC ciphertext of plain.
func (c *Cipher) Encrypt(plain string) (string, error) {
	padded, err := pad([]byte(plain))
	if err != nil {
		return "", err
	}
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "crypto: generating iv")
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(text string) (string, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "crypto: decoding ciphertext"), ErrInvalidCiphertext)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)
	out, err := unpad(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
