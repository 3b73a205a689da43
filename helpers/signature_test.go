package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"action":"bet","amount":"2.50"}`)
	ts := "2026-08-23T10:00:00Z"

	sig, err := Sign(body, ts, "topsecret")
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	ok, err := Verify(body, ts, sig, "topsecret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"action":"bet","amount":"2.50"}`)
	ts := "2026-08-23T10:00:00Z"

	sig, err := Sign(body, ts, "topsecret")
	require.NoError(t, err)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		ok, err := Verify(tampered, ts, sig, "topsecret")
		require.NoError(t, err)
		assert.False(t, ok, "flipping byte %d must break the signature", i)
	}
}

func TestVerifyBindsTimestamp(t *testing.T) {
	body := []byte(`{"action":"balance"}`)

	sig, err := Sign(body, "2026-08-23T10:00:00Z", "topsecret")
	require.NoError(t, err)

	ok, err := Verify(body, "2026-08-23T10:00:01Z", sig, "topsecret")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	body := []byte(`{}`)
	ts := "2026-08-23T10:00:00Z"

	sig, err := Sign(body, ts, "key-a")
	require.NoError(t, err)

	ok, err := Verify(body, ts, sig, "key-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedInputs(t *testing.T) {
	_, err := Sign([]byte(`{}`), "ts", "")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Verify([]byte(`{}`), "ts", "sig", "")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Verify([]byte(`{}`), "ts", "", "secret")
	assert.ErrorIs(t, err, ErrEmptySignature)
}
