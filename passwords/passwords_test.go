package passwords_test

import (
	"testing"

	"github.com/jrsteele09/research-portal/passwords"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Hashes produced by the previous framework for "Secret123!"
const (
	legacyPBKDF2SHA256 = "pbkdf2:sha256:1000$saltSALT1234abcd$00f983a3c26318d857f8cc48dee550789049f8e41f4778d95432ba0e0193c2d9"
	legacyPBKDF2SHA512 = "pbkdf2:sha512:500$saltSALT1234abcd$2ccf7e89c34a373ecf29dbe27dedfffdbd0e63fc4d1fb8501b20452b944305f421fbff17a881841e10a91c487dd4556617af073e0ea2e6f78a94e8f2616c90dd"
	legacyScrypt       = "scrypt:1024:8:1$saltSALT1234abcd$5666c42443298564fe689a6fd1f0b3839ba9e7e54e50d091a459a621a6cad54b12dbb5d0a641f5d980a9c17d950e8220eedf9b2bed508a7c5ed7ef56963f80aa"
)

func TestHashAndVerify(t *testing.T) {
	h := passwords.New(bcrypt.MinCost)

	first, err := h.Hash("Secret123!")
	require.NoError(t, err)
	second, err := h.Hash("Secret123!")
	require.NoError(t, err)

	require.NotEqual(t, first, second, "salts must differ")
	require.NotContains(t, first, "Secret123!")
	require.True(t, h.Verify("Secret123!", first))
	require.True(t, h.Verify("Secret123!", second))
	require.False(t, h.Verify("secret123!", first))
}

func TestHash_EmptyPassword(t *testing.T) {
	_, err := passwords.New(bcrypt.MinCost).Hash("")
	require.ErrorIs(t, err, passwords.ErrEmptyPassword)
}

func TestVerify_LegacyHashes(t *testing.T) {
	h := passwords.New(bcrypt.MinCost)

	for name, encoded := range map[string]string{
		"pbkdf2 sha256": legacyPBKDF2SHA256,
		"pbkdf2 sha512": legacyPBKDF2SHA512,
		"scrypt":        legacyScrypt,
	} {
		t.Run(name, func(t *testing.T) {
			require.True(t, h.Verify("Secret123!", encoded))
			require.False(t, h.Verify("Secret1234", encoded))
			require.True(t, h.NeedsRehash(encoded))
		})
	}
}

func TestVerify_MalformedNeverMatches(t *testing.T) {
	h := passwords.New(bcrypt.MinCost)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$2a$04$short",
		"pbkdf2:sha256:1000$salt",
		"pbkdf2:md5:1000$salt$abcd",
		"pbkdf2:sha256:notanumber$salt$abcd",
		"pbkdf2:sha256:1000$salt$nothex",
		"scrypt:0:8:1$salt$abcd",
		"scrypt:1024:8$salt$abcd",
		"argon2$whatever$abcd",
	} {
		require.NotPanics(t, func() {
			require.False(t, h.Verify("Secret123!", encoded), encoded)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	low := passwords.New(bcrypt.MinCost)
	high := passwords.New(bcrypt.MinCost + 1)

	encoded, err := low.Hash("Secret123!")
	require.NoError(t, err)

	require.False(t, low.NeedsRehash(encoded))
	require.True(t, high.NeedsRehash(encoded))
	require.True(t, low.NeedsRehash("garbage"))
}

func TestNew_OutOfRangeCostUsesDefault(t *testing.T) {
	h := passwords.New(0)
	require.False(t, h.NeedsRehash(mustCost(t, passwords.DefaultCost)))
}

func TestCompareDecoy(t *testing.T) {
	h := passwords.New(bcrypt.MinCost)
	require.NotPanics(t, func() {
		h.CompareDecoy("anything")
		h.CompareDecoy("")
	})
}

func mustCost(t *testing.T, cost int) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte("x"), cost)
	require.NoError(t, err)
	return string(b)
}
