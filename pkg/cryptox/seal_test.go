package cryptox_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/bartab-web/pkg/cryptox"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSealOpen(t *testing.T) {
	s, err := cryptox.NewSealer(testSecret, "session")
	require.NoError(t, err)

	payload := []byte(`{"access_token":"abc"}`)

	sealed1, err := s.Seal(payload, []byte("cookie"))
	require.NoError(t, err)
	sealed2, err := s.Seal(payload, []byte("cookie"))
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonces must differ")

	opened, err := s.Open(sealed1, []byte("cookie"))
	require.NoError(t, err)
	require.Equal(t, payload, opened)
}

func TestOpenRejects(t *testing.T) {
	s, err := cryptox.NewSealer(testSecret, "session")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("hello"), nil)
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := s.Open(bad, nil)
		require.ErrorIs(t, err, cryptox.ErrCiphertext)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := s.Open(sealed[:10], nil)
		require.ErrorIs(t, err, cryptox.ErrCiphertext)
	})

	t.Run("wrong additional data", func(t *testing.T) {
		_, err := s.Open(sealed, []byte("other"))
		require.ErrorIs(t, err, cryptox.ErrCiphertext)
	})

	t.Run("different purpose key", func(t *testing.T) {
		other, err := cryptox.NewSealer(testSecret, "flow")
		require.NoError(t, err)
		_, err = other.Open(sealed, nil)
		require.ErrorIs(t, err, cryptox.ErrCiphertext)
	})
}

func TestDeriveKey(t *testing.T) {
	_, err := cryptox.DeriveKey([]byte("short"), "x", 32)
	require.ErrorIs(t, err, cryptox.ErrWeakSecret)

	a, err := cryptox.DeriveKey(testSecret, "a", 32)
	require.NoError(t, err)
	b, err := cryptox.DeriveKey(testSecret, "b", 32)
	require.NoError(t, err)
	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
}
