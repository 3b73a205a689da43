package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrEmptySecret    = errors.New("empty signing secret")
	ErrEmptySignature = errors.New("empty signature")
)

// Sign computes the lowercase hex HMAC-SHA256 over the exact request bytes
// as transmitted, followed by the timestamp string. The body must not be
// re-serialized or normalized before signing.
func Sign(rawBody []byte, timestamp, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. A mismatch
// is a false return, not an error; errors are reserved for malformed inputs.
func Verify(rawBody []byte, timestamp, signature, secret string) (bool, error) {
	if secret == "" {
		return false, ErrEmptySecret
	}
	if signature == "" {
		return false, ErrEmptySignature
	}
	expected, err := Sign(rawBody, timestamp, secret)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
