package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
)

// encPrefix marks values sealed by this package so plain legacy values can be told apart.
const encPrefix = "enc:"

var ErrNoKey = errors.New("encryption key not configured")

// Box seals tenant secrets (bot credentials, provider tokens) with AES-256-GCM.
type Box struct {
	key []byte
}

// NewBox derives a 32 byte key from secret. An empty secret yields a Box that
// passes values through untouched.
func NewBox(secret string) *Box {
	if secret == "" {
		return &Box{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Box{key: sum[:]}
}

func (b *Box) Encrypt(plainText string) (string, error) {
	if len(b.key) == 0 {
		return plainText, nil
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the enc: prefix
// are returned as-is (credentials stored before encryption was enabled).
func (b *Box) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	if len(b.key) == 0 {
		return "", ErrNoKey
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", err
	}

	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, cipherText := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var (
	defaultMu  sync.RWMutex
	defaultBox = NewBox("")
)

// SetEncryptionKey configures the process-wide Box used by Encrypt/Decrypt.
func SetEncryptionKey(secret string) {
	defaultMu.Lock()
	defaultBox = NewBox(secret)
	defaultMu.Unlock()
}

func Default() *Box {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultBox
}

func Encrypt(plainText string) (string, error) {
	return Default().Encrypt(plainText)
}

func Decrypt(value string) (string, error) {
	return Default().Decrypt(value)
}
