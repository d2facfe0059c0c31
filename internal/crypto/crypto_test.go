package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

var testParams = Params{Time: 1, Memory: 64, Threads: 1}

func TestSealOpen(t *testing.T) {
	e := New(testParams)
	passphrase := []byte("my passphrase")
	message := []byte("my message")

	sealed, err := e.Seal(passphrase, message)
	require.NoError(t, err)
	require.Len(t, sealed.Salt, saltSize)
	require.Len(t, sealed.Nonce, nonceSize)
	require.NotContains(t, string(sealed.Ciphertext), string(message))

	plaintext, err := e.Open(passphrase, sealed)
	require.NoError(t, err)
	require.Equal(t, message, plaintext)
}

func TestOpenWrongPassphrase(t *testing.T) {
	e := New(testParams)

	sealed, err := e.Seal([]byte("my passphrase"), []byte("my message"))
	require.NoError(t, err)

	plaintext, err := e.Open([]byte("my passphrase!"), sealed)
	require.ErrorIs(t, err, ErrAuthentication)
	require.Nil(t, plaintext)
}

func TestVerify(t *testing.T) {
	e := New(testParams)

	sealed, err := e.Seal([]byte("my passphrase"), []byte("my message"))
	require.NoError(t, err)

	require.True(t, e.Verify([]byte("my passphrase"), sealed))
	require.False(t, e.Verify([]byte("my passphrase!"), sealed))
	require.False(t, e.Verify(nil, sealed))

	// The verifier does not cover the ciphertext.
	sealed.Ciphertext[0] ^= 0xff
	require.True(t, e.Verify([]byte("my passphrase"), sealed))
}

func TestOpenTamperedCiphertext(t *testing.T) {
	e := New(testParams)
	passphrase := []byte("my passphrase")

	sealed, err := e.Seal(passphrase, []byte("my message"))
	require.NoError(t, err)

	sealed.Ciphertext[0] ^= 0xff

	plaintext, err := e.Open(passphrase, sealed)
	require.ErrorIs(t, err, ErrAuthentication)
	require.Nil(t, plaintext)
}

func TestOpenMalformedNonce(t *testing.T) {
	e := New(testParams)
	passphrase := []byte("my passphrase")

	sealed, err := e.Seal(passphrase, []byte("my message"))
	require.NoError(t, err)

	sealed.Nonce = sealed.Nonce[:4]

	_, err = e.Open(passphrase, sealed)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAuthentication)
}

func TestSealIsRandomized(t *testing.T) {
	e := New(testParams)
	passphrase := []byte("same")
	message := []byte("same")

	a, err := e.Seal(passphrase, message)
	require.NoError(t, err)
	b, err := e.Seal(passphrase, message)
	require.NoError(t, err)

	require.False(t, bytes.Equal(a.Salt, b.Salt))
	require.False(t, bytes.Equal(a.Ciphertext, b.Ciphertext))
	require.False(t, bytes.Equal(a.Verifier, b.Verifier))
}

func TestEmptyPassphraseAndMessage(t *testing.T) {
	e := New(testParams)

	sealed, err := e.Seal(nil, nil)
	require.NoError(t, err)

	plaintext, err := e.Open([]byte{}, sealed)
	require.NoError(t, err)
	require.Empty(t, plaintext)
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id, err := GenerateID()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(id)
		require.NoError(t, err)
		require.Len(t, raw, idLength)

		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
