package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestParseMnemonic(t *testing.T) {
	kp, err := Parse("  "+testMnemonic+"\n", Options{})
	require.NoError(t, err)

	assert.Equal(t, FormatMnemonic, kp.Format)
	assert.Equal(t, DerivationPhantom, kp.Derivation)
	assert.Len(t, kp.PrivateKey, 64)

	// Same words, different derivations, different wallets.
	legacy, err := Parse(testMnemonic, Options{Derivation: DerivationSeed32})
	require.NoError(t, err)
	assert.NotEqual(t, kp.PublicKey(), legacy.PublicKey())

	// Deterministic.
	again, err := FromMnemonic(strings.ToUpper(testMnemonic), Options{})
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), again.PublicKey())
}

func TestParseMnemonicPassphraseChangesWallet(t *testing.T) {
	plain, err := FromMnemonic(testMnemonic, Options{})
	require.NoError(t, err)
	withPass, err := FromMnemonic(testMnemonic, Options{Passphrase: "TREZOR"})
	require.NoError(t, err)

	assert.NotEqual(t, plain.PublicKey(), withPass.PublicKey())
}

func TestParseInvalidMnemonicChecksum(t *testing.T) {
	input := strings.TrimSpace(strings.Repeat("abandon ", 12))
	_, err := Parse(input, Options{})
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestParseBase58SecretKey(t *testing.T) {
	generated, _, err := Generate(12)
	require.NoError(t, err)

	kp, err := Parse(EncodeBase58(generated), Options{})
	require.NoError(t, err)

	assert.Equal(t, FormatBase58, kp.Format)
	assert.Equal(t, generated.PublicKey(), kp.PublicKey())
}

func TestParseBase58Seed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	kp, err := Parse(base58.Encode(seed), Options{})
	require.NoError(t, err)

	assert.Equal(t, FormatBase58Seed, kp.Format)
	expected := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.Equal(t, []byte(expected), kp.PublicKey().Bytes())
}

func TestParseJSONArray(t *testing.T) {
	generated, _, err := Generate(24)
	require.NoError(t, err)

	encoded, err := EncodeJSONArray(generated)
	require.NoError(t, err)

	kp, err := Parse(encoded, Options{})
	require.NoError(t, err)
	assert.Equal(t, FormatJSONArray, kp.Format)
	assert.Equal(t, generated.PublicKey(), kp.PublicKey())

	// solana-keygen writes without spaces, people paste with them.
	spaced := strings.ReplaceAll(encoded, ",", ", ")
	kp, err = Parse(spaced, Options{})
	require.NoError(t, err)
	assert.Equal(t, generated.PublicKey(), kp.PublicKey())
}

func TestParseJSONSeed(t *testing.T) {
	values := make([]string, 32)
	for i := range values {
		values[i] = "7"
	}

	kp, err := Parse("["+strings.Join(values, ",")+"]", Options{})
	require.NoError(t, err)
	assert.Equal(t, FormatJSONSeed, kp.Format)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Parse("[1,2,3]", Options{})
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = Parse("[1,2,300]", Options{})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Parse("[1,2,", Options{})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Parse("0OIl", Options{})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = Parse(base58.Encode([]byte("too short")), Options{})
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = Parse("three word phrase", Options{})
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestParseRejectsMismatchedSecretKey(t *testing.T) {
	generated, _, err := Generate(12)
	require.NoError(t, err)

	tampered := append([]byte(nil), generated.PrivateKey...)
	tampered[63] ^= 0xff

	_, err = Parse(base58.Encode(tampered), Options{})
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestGenerate(t *testing.T) {
	_, mnemonic, err := Generate(12)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(mnemonic), 12)

	_, mnemonic, err = Generate(24)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(mnemonic), 24)

	_, _, err = Generate(15)
	assert.Error(t, err)
}

func TestParseDerivation(t *testing.T) {
	d, err := ParseDerivation("")
	require.NoError(t, err)
	assert.Equal(t, DerivationPhantom, d)

	d, err = ParseDerivation("SEED32")
	require.NoError(t, err)
	assert.Equal(t, DerivationSeed32, d)

	_, err = ParseDerivation("bip32")
	assert.Error(t, err)
}

// SLIP-0010 ed25519 test vector 1.
func TestDeriveEd25519Vector(t *testing.T) {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)

	key, chain := deriveEd25519(seed)
	assert.Equal(t, "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7", hex.EncodeToString(key))
	assert.Equal(t, "90046a93de5380a72b5e45010748567d5ea02bbf6522f979e05c0d8d8ca9fffb", hex.EncodeToString(chain))

	key, chain = deriveEd25519(seed, 0)
	assert.Equal(t, "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3", hex.EncodeToString(key))
	assert.Equal(t, "8b59aa11380b624e81507a27fedda59fea6d0b779a778918a2fd3590e16e9c69", hex.EncodeToString(chain))
}
