package vault

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	secret := []byte("sixty-four bytes of secret key material would normally go here!")

	sealed, err := Seal(secret, "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.Salt)
	assert.NotEqual(t, LegacySalt, sealed.Salt)

	plain, err := Open(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, secret, plain)

	_, err = Open(sealed, "battery staple")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSealUsesFreshSaltAndIV(t *testing.T) {
	a, err := Seal([]byte("x"), "p")
	require.NoError(t, err)
	b, err := Seal([]byte("x"), "p")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpenLegacyRecord(t *testing.T) {
	sealed, err := SealWithSalt([]byte("legacy"), "pw", LegacySalt)
	require.NoError(t, err)

	// Old rows may carry an empty salt column.
	sealed.Salt = ""
	plain, err := Open(sealed, "pw")
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy"), plain)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(&Sealed{Ciphertext: "!!", IV: "AAAAAAAAAAAAAAAA", Salt: "s"}, "pw")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(&Sealed{Ciphertext: "AAAA", IV: "AAAA", Salt: "s"}, "pw")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(nil, "pw")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Seal([]byte("x"), "")
	assert.ErrorIs(t, err, ErrPassphrase)
}

func TestDerivePassphrase(t *testing.T) {
	p1, err := DerivePassphrase("master", "alice")
	require.NoError(t, err)
	p2, err := DerivePassphrase("master", "alice")
	require.NoError(t, err)
	p3, err := DerivePassphrase("master", "bob")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1, p3)
	raw, err := hex.DecodeString(p1)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	_, err = DerivePassphrase("", "alice")
	assert.ErrorIs(t, err, ErrNoMasterKey)
}

func TestBox(t *testing.T) {
	box, err := NewBox("session-secret")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("payload"))
	require.NoError(t, err)

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)

	other, err := NewBox("another-secret")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = box.Open("short")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewBox("")
	assert.Error(t, err)
}
