/**
 * @description
 * Package vault encrypts small secrets (the tax-id fragment of a customer)
 * before they reach the ledger.
 *
 * @notes
 * - New envelopes are AES-256-GCM: "gcm:<nonceHex>:<cipherHex>".
 * - Envelopes written before the GCM upgrade are AES-256-CBC with PKCS#7
 *   padding: "<ivHex>:<cipherHex>". They are still readable, never written.
 */
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	KeySize   = 32
	gcmPrefix = "gcm"
)

var (
	ErrInvalidKey      = errors.New("vault key must be exactly 32 bytes")
	ErrInvalidEnvelope = errors.New("invalid vault envelope")
)

// Vault performs symmetric encryption with a fixed 256-bit key.
type Vault struct {
	block cipher.Block
	rand  io.Reader
}

// New creates a Vault from a 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Vault{block: block, rand: rand.Reader}, nil
}

// Encrypt seals plaintext into a GCM envelope. Every call uses a fresh nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := cipher.NewGCM(v.block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return gcmPrefix + ":" + hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a GCM envelope or a legacy CBC envelope.
func (v *Vault) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	switch {
	case len(parts) == 3 && parts[0] == gcmPrefix:
		return v.decryptGCM(parts[1], parts[2])
	case len(parts) == 2:
		return v.decryptLegacyCBC(parts[0], parts[1])
	default:
		return "", ErrInvalidEnvelope
	}
}

func (v *Vault) decryptGCM(nonceHex, cipherHex string) (string, error) {
	aead, err := cipher.NewGCM(v.block)
	if err != nil {
		return "", err
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != aead.NonceSize() {
		return "", ErrInvalidEnvelope
	}
	sealed, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidEnvelope
	}
	return string(plain), nil
}

func (v *Vault) decryptLegacyCBC(ivHex, cipherHex string) (string, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrInvalidEnvelope
	}
	data, err := hex.DecodeString(cipherHex)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrInvalidEnvelope
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(v.block, iv).CryptBlocks(out, data)
	return unpad(out)
}

func unpad(data []byte) (string, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return "", ErrInvalidEnvelope
	}
	if !bytes.Equal(data[len(data)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return "", ErrInvalidEnvelope
	}
	return string(data[:len(data)-n]), nil
}
