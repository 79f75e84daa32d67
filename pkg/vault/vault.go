package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Iterations = 100_000
	KeyLen     = 32
	SaltLen    = 16
	IVLen      = 12

	// LegacySalt is the fixed salt of records written before per-record salts.
	LegacySalt = "veilfi-user-salt"
)

var (
	ErrDecrypt     = errors.New("unable to decrypt secret: wrong passphrase or corrupted record")
	ErrNoMasterKey = errors.New("server master key not configured")
	ErrPassphrase  = errors.New("passphrase required")
)

// Sealed is an encrypted secret as stored in the users table. Salt is used as
// its literal text bytes for key derivation.
type Sealed struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

// Seal encrypts secret with a key derived from passphrase and a fresh salt.
func Seal(secret []byte, passphrase string) (*Sealed, error) {
	saltBytes := make([]byte, SaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	return SealWithSalt(secret, passphrase, base64.StdEncoding.EncodeToString(saltBytes))
}

// SealWithSalt encrypts secret using the given salt text.
func SealWithSalt(secret []byte, passphrase, salt string) (*Sealed, error) {
	if passphrase == "" {
		return nil, ErrPassphrase
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to read iv: %w", err)
	}

	ct := gcm.Seal(nil, iv, secret, nil)

	return &Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Salt:       salt,
	}, nil
}

// Open decrypts a sealed record.
func Open(s *Sealed, passphrase string) ([]byte, error) {
	if s == nil {
		return nil, ErrDecrypt
	}
	if passphrase == "" {
		return nil, ErrPassphrase
	}

	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecrypt, err)
	}
	iv, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil || len(iv) != IVLen {
		return nil, fmt.Errorf("%w: bad iv", ErrDecrypt)
	}

	salt := s.Salt
	if salt == "" {
		salt = LegacySalt
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// DerivePassphrase returns the per-user passphrase used when a user does not
// supply one: hex(HMAC-SHA256(master, userID)).
func DerivePassphrase(master, userID string) (string, error) {
	if master == "" {
		return "", ErrNoMasterKey
	}
	mac := hmac.New(sha256.New, []byte(master))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func newGCM(passphrase, salt string) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), Iterations, KeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
