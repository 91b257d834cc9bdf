package credential

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/agentuity/go-apiclient/crypto"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf, &m))
	return m
}

func TestPasswordPayload(t *testing.T) {
	buf, err := Password{Username: "Alice@Example.com", Password: "s3cret"}.LoginPayload()
	require.NoError(t, err)
	m := decode(t, buf)
	assert.Equal(t, "alice@example.com", m["username"])
	assert.Equal(t, "s3cret", m["password"])

	_, err = Password{}.ChallengePayload(http.Header{})
	assert.True(t, errors.Is(err, ErrNoChallenge))
}

func TestThirdPartyPayload(t *testing.T) {
	cred := ThirdParty{AccessToken: "tok"}
	assert.Equal(t, KindThirdParty, cred.Kind())
	buf, err := cred.LoginPayload()
	require.NoError(t, err)
	assert.Equal(t, "tok", decode(t, buf)["access_token"])
}

func TestUnboundDevicePayload(t *testing.T) {
	d := NewDevice("", "", "secret", "machine")
	assert.False(t, d.Bound())
	buf, err := d.LoginPayload()
	require.NoError(t, err)
	m := decode(t, buf)
	assert.Equal(t, float64(0), m["uuid"])
	assert.Equal(t, float64(0), m["hash"])
}

func TestDeviceChallenge(t *testing.T) {
	d := NewDevice("", "", "secret", "machine")

	_, err := d.ChallengePayload(http.Header{})
	assert.True(t, errors.Is(err, ErrIncompatible))

	h := http.Header{}
	h.Set(HeaderDeviceToken, "token")
	_, err = d.ChallengePayload(h)
	assert.True(t, errors.Is(err, ErrIncompatible), "a new device needs a uuid")

	h.Set(HeaderDeviceNewUUID, "uuid-1")
	buf, err := d.ChallengePayload(h)
	require.NoError(t, err)
	assert.True(t, d.Bound())

	sum := sha1.Sum([]byte("uuid-1" + "machine" + "token" + "secret"))
	m := decode(t, buf)
	assert.Equal(t, "uuid-1", m["uuid"])
	assert.Equal(t, hex.EncodeToString(sum[:]), m["hash"])
	assert.Equal(t, "machine", m["device"])

	h.Set(HeaderDeviceToken, "token-2")
	h.Set(HeaderDeviceNewUUID, "ignored")
	buf, err = d.ChallengePayload(h)
	require.NoError(t, err)
	m = decode(t, buf)
	assert.Equal(t, "uuid-1", m["uuid"], "a known uuid is kept")
	assert.NotContains(t, m, "device")
	assert.Equal(t, "token-2", d.Token)
}

func TestCloneIsolatesChallenge(t *testing.T) {
	d := NewDevice("", "", "secret", "machine")
	c, ok := Clone(d).(*Device)
	require.True(t, ok)
	require.NotSame(t, d, c)

	h := http.Header{}
	h.Set(HeaderDeviceToken, "token")
	h.Set(HeaderDeviceNewUUID, "uuid-1")
	_, err := c.ChallengePayload(h)
	require.NoError(t, err)
	assert.True(t, c.Bound())
	assert.False(t, d.Bound())
	assert.Empty(t, d.Token)

	p := Password{Username: "alice", Password: "pw"}
	assert.Equal(t, Credential(p), Clone(p))
	assert.Nil(t, Clone(nil))
}

func TestCodecRoundTrip(t *testing.T) {
	cipher, err := crypto.NewCipher("persist-secret")
	require.NoError(t, err)
	codec := NewCodec(cipher, "device-secret", "machine")

	for _, cred := range []Credential{
		Password{Username: "bob", Password: "pw"},
		ThirdParty{AccessToken: "access"},
		codec.NewDevice("token", "uuid"),
	} {
		buf, err := codec.Encode(cred)
		require.NoError(t, err)
		assert.NotContains(t, string(buf), "pw")
		assert.NotContains(t, string(buf), "access")

		got, err := codec.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, cred.Kind(), got.Kind())
		want, _ := cred.LoginPayload()
		have, _ := got.LoginPayload()
		assert.JSONEq(t, string(want), string(have))
	}
}

func TestCodecWrongSecret(t *testing.T) {
	a, err := crypto.NewCipher("one")
	require.NoError(t, err)
	b, err := crypto.NewCipher("two")
	require.NoError(t, err)

	buf, err := NewCodec(a, "", "").Encode(Password{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	got, err := NewCodec(b, "", "").Decode(buf)
	if err == nil {
		assert.NotEqual(t, Password{Username: "bob", Password: "pw"}, got)
	}

	_, err = NewCodec(a, "", "").Decode([]byte("garbage"))
	assert.Error(t, err)
}

func TestMachineID(t *testing.T) {
	assert.NotEmpty(t, MachineID(context.Background()))
}
