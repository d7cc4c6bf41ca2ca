package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()

	h := DefaultHasher

	t.Run("hash and compare", func(t *testing.T) {
		hash, err := h.Hash("password123")

		require.NoError(t, err)
		require.NotEqual(t, "password123", hash)
		require.NoError(t, h.Compare(hash, "password123"))
		require.Error(t, h.Compare(hash, "password124"))
	})

	t.Run("hashes are salted", func(t *testing.T) {
		first, err := h.Hash("password123")
		require.NoError(t, err)
		second, err := h.Hash("password123")
		require.NoError(t, err)

		require.NotEqual(t, first, second, "same password must not produce the same hash")
	})

	t.Run("long passphrase is not truncated", func(t *testing.T) {
		// Plain bcrypt ignores everything after 72 bytes, the sha256
		// pre-hash must not
		long := strings.Repeat("correct horse battery staple ", 4)
		require.Greater(t, len(long), 72)

		hash, err := h.Hash(long)
		require.NoError(t, err)

		require.NoError(t, h.Compare(hash, long))
		require.Error(t, h.Compare(hash, long[:72]), "prefix of a long passphrase must not match")
	})
}
