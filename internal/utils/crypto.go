package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// Cipher modes accepted by NewCardCipher
const (
	CipherModeGCM = "gcm"
	CipherModeCBC = "cbc"
)

// CardCipher encrypts card numbers for storage
type CardCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NewCardCipher builds the cipher for the configured mode.
// keyHex must decode to 16, 24 or 32 bytes; ivHex is only used in CBC mode.
func NewCardCipher(mode, keyHex, ivHex string) (CardCipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key is not valid hex: %v", ErrCryptoFailure, err)
	}
	switch mode {
	case "", CipherModeGCM:
		return NewGCMCipher(key)
	case CipherModeCBC:
		iv, err := hex.DecodeString(ivHex)
		if err != nil {
			return nil, fmt.Errorf("%w: encryption IV is not valid hex: %v", ErrCryptoFailure, err)
		}
		return NewCBCCipher(key, iv)
	default:
		return nil, fmt.Errorf("%w: unknown cipher mode %q", ErrInvalidArgument, mode)
	}
}

// GCMCipher is AES-GCM with a random nonce per record, stored as
// base64(nonce || sealed).
type GCMCipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewGCMCipher initializes AES-GCM from raw key bytes
func NewGCMCipher(key []byte) (*GCMCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", ErrCryptoFailure, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCM: %v", ErrCryptoFailure, err)
	}
	return &GCMCipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh nonce
func (c *GCMCipher) Encrypt(plaintext string) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: input data is empty", ErrCryptoFailure)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrCryptoFailure, err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func (c *GCMCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode base64: %v", ErrCryptoFailure, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", fmt.Errorf("%w: encrypted data too short: %d bytes", ErrCryptoFailure, len(data))
	}
	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decrypt: %v", ErrCryptoFailure, err)
	}
	return string(plaintext), nil
}

// CBCCipher is AES-CBC with PKCS#7 padding and one fixed IV for every record.
// Equal plaintexts produce equal ciphertexts; use it only where existing data
// was written this way.
type CBCCipher struct {
	block cipher.Block
	iv    []byte
}

// NewCBCCipher initializes AES-CBC from raw key and IV bytes
func NewCBCCipher(key, iv []byte) (*CBCCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", ErrCryptoFailure, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes, got %d", ErrCryptoFailure, aes.BlockSize, len(iv))
	}
	return &CBCCipher{block: block, iv: bytes.Clone(iv)}, nil
}

// Encrypt encrypts a string using AES-CBC with PKCS#5/PKCS#7 padding
func (c *CBCCipher) Encrypt(plaintext string) (string, error) {
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: input data is empty", ErrCryptoFailure)
	}

	data := []byte(plaintext)
	padding := aes.BlockSize - len(data)%aes.BlockSize
	data = append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a base64 string produced by Encrypt
func (c *CBCCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode base64: %v", ErrCryptoFailure, err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: invalid ciphertext length: %d bytes", ErrCryptoFailure, len(data))
	}

	plaintext := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(plaintext, data)

	padding := int(plaintext[len(plaintext)-1])
	if padding > aes.BlockSize || padding == 0 {
		return "", fmt.Errorf("%w: invalid padding value: %d", ErrCryptoFailure, padding)
	}
	for i := len(plaintext) - padding; i < len(plaintext); i++ {
		if int(plaintext[i]) != padding {
			return "", fmt.Errorf("%w: invalid padding bytes", ErrCryptoFailure)
		}
	}
	return string(plaintext[:len(plaintext)-padding]), nil
}

// NumberIndex derives the uniqueness key of a card number
type NumberIndex interface {
	Digest(number string) string
}

// HMACIndex is a keyed SHA-256 digest of the plaintext number
type HMACIndex struct {
	secret []byte
}

// NewHMACIndex creates a digest index keyed with secret
func NewHMACIndex(secret string) *HMACIndex {
	return &HMACIndex{secret: []byte(secret)}
}

// Digest returns hex(HMAC-SHA256(secret, number))
func (i *HMACIndex) Digest(number string) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(number))
	return hex.EncodeToString(h.Sum(nil))
}
