package keys

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	ErrEmptyInput         = errors.New("empty key input")
	ErrInvalidMnemonic    = errors.New("invalid mnemonic")
	ErrInvalidLength      = errors.New("invalid key length")
	ErrUnrecognizedFormat = errors.New("unrecognized key format")
	ErrKeyMismatch        = errors.New("secret key does not match its public key")
)

// Format names the encoding a key was imported from.
type Format string

const (
	FormatMnemonic   Format = "mnemonic"
	FormatBase58     Format = "base58"
	FormatBase58Seed Format = "base58-seed"
	FormatJSONArray  Format = "json-array"
	FormatJSONSeed   Format = "json-seed"
)

const (
	minMnemonicWords = 12
	maxMnemonicWords = 24
)

// Keypair is an imported ed25519 signing key.
type Keypair struct {
	PrivateKey solana.PrivateKey
	Format     Format
	Derivation Derivation // only set for mnemonics
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.PrivateKey.PublicKey()
}

// Options control mnemonic handling.
type Options struct {
	Derivation Derivation
	Passphrase string // BIP-39 passphrase, not the vault passphrase
}

// Parse detects the format of input and returns the keypair it encodes.
// Detection order: 12-24 words are a mnemonic, a leading '[' is a JSON byte
// array, anything else is base58. 32-byte inputs are treated as ed25519 seeds.
func Parse(input string, opts Options) (*Keypair, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	if strings.HasPrefix(trimmed, "[") {
		return parseJSONArray(trimmed)
	}

	words := strings.Fields(trimmed)
	if n := len(words); n >= minMnemonicWords && n <= maxMnemonicWords {
		return FromMnemonic(strings.Join(words, " "), opts)
	}
	if len(words) > 1 {
		return nil, fmt.Errorf("%w: %d words", ErrUnrecognizedFormat, len(words))
	}

	raw, err := base58.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: not base58", ErrUnrecognizedFormat)
	}

	return fromRaw(raw, FormatBase58, FormatBase58Seed)
}

// ParseBytes accepts a raw 64-byte secret key or a 32-byte seed.
func ParseBytes(raw []byte) (*Keypair, error) {
	return fromRaw(raw, FormatJSONArray, FormatJSONSeed)
}

func fromRaw(raw []byte, full, seedOnly Format) (*Keypair, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !ed25519.PublicKey(raw[ed25519.SeedSize:]).Equal(derived.Public()) {
			return nil, ErrKeyMismatch
		}
		return &Keypair{PrivateKey: solana.PrivateKey(derived), Format: full}, nil
	case ed25519.SeedSize:
		return &Keypair{PrivateKey: solana.PrivateKey(ed25519.NewKeyFromSeed(raw)), Format: seedOnly}, nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes, want 64 or 32", ErrInvalidLength, len(raw))
	}
}

func parseJSONArray(input string) (*Keypair, error) {
	var values []int
	if err := json.Unmarshal([]byte(input), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range (%d)", ErrUnrecognizedFormat, i, v)
		}
		raw[i] = byte(v)
	}

	return fromRaw(raw, FormatJSONArray, FormatJSONSeed)
}

// EncodeBase58 returns the 64-byte secret key in base58.
func EncodeBase58(kp *Keypair) string {
	return kp.PrivateKey.String()
}

// EncodeJSONArray returns the secret key as a JSON byte array, the format of
// solana-keygen files.
func EncodeJSONArray(kp *Keypair) (string, error) {
	values := make([]int, len(kp.PrivateKey))
	for i, b := range kp.PrivateKey {
		values[i] = int(b)
	}
	out, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
