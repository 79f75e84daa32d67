package keys

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// Derivation selects how a mnemonic becomes an ed25519 key.
type Derivation string

const (
	// DerivationPhantom is SLIP-0010 at m/44'/501'/0'/0', the path used by
	// Phantom, Solflare and solana-keygen recover.
	DerivationPhantom Derivation = "phantom"
	// DerivationSeed32 uses the first 32 bytes of the BIP-39 seed directly.
	DerivationSeed32 Derivation = "seed32"
)

const hardenedOffset uint32 = 0x80000000

// SolanaPath is m/44'/501'/0'/0'.
var SolanaPath = []uint32{44, 501, 0, 0}

// ParseDerivation maps a request value to a Derivation; empty selects Phantom.
func ParseDerivation(s string) (Derivation, error) {
	switch Derivation(strings.ToLower(strings.TrimSpace(s))) {
	case "", DerivationPhantom:
		return DerivationPhantom, nil
	case DerivationSeed32:
		return DerivationSeed32, nil
	default:
		return "", fmt.Errorf("unknown derivation %q", s)
	}
}

// FromMnemonic validates a BIP-39 mnemonic and derives its keypair.
func FromMnemonic(mnemonic string, opts Options) (*Keypair, error) {
	mnemonic = strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	derivation := opts.Derivation
	if derivation == "" {
		derivation = DerivationPhantom
	}

	seed := bip39.NewSeed(mnemonic, opts.Passphrase)

	var keySeed []byte
	switch derivation {
	case DerivationPhantom:
		keySeed, _ = deriveEd25519(seed, SolanaPath...)
	case DerivationSeed32:
		keySeed = seed[:ed25519.SeedSize]
	default:
		return nil, fmt.Errorf("unknown derivation %q", derivation)
	}

	return &Keypair{
		PrivateKey: solana.PrivateKey(ed25519.NewKeyFromSeed(keySeed)),
		Format:     FormatMnemonic,
		Derivation: derivation,
	}, nil
}

// Generate creates a new mnemonic of 12 or 24 words and its Phantom-path keypair.
func Generate(words int) (*Keypair, string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return nil, "", fmt.Errorf("unsupported mnemonic length %d", words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create mnemonic: %w", err)
	}

	kp, err := FromMnemonic(mnemonic, Options{Derivation: DerivationPhantom})
	if err != nil {
		return nil, "", err
	}
	return kp, mnemonic, nil
}

// deriveEd25519 walks a SLIP-0010 ed25519 path. Every index is hardened,
// ed25519 has no public derivation.
func deriveEd25519(seed []byte, path ...uint32) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode = sum[:32], sum[32:]

	for _, index := range path {
		data := make([]byte, 0, 1+32+4)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index|hardenedOffset)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}

	return key, chainCode
}
