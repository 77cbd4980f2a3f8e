package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Chave de desenvolvimento usada quando ENCRYPTION_KEY_HEX não está definida. NÃO USE EM PRODUÇÃO.
const devEncryptionKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var (
	keyMu         sync.RWMutex
	encryptionKey []byte
)

// SetEncryptionKey configura a chave AES-256 (64 caracteres hexadecimais).
// Uma string vazia instala a chave de desenvolvimento e retorna usingDevKey = true.
func SetEncryptionKey(hexKey string) (usingDevKey bool, err error) {
	if hexKey == "" {
		hexKey = devEncryptionKeyHex
		usingDevKey = true
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return false, fmt.Errorf("ENCRYPTION_KEY_HEX inválida: %w", err)
	}
	if len(key) != 32 {
		return false, errors.New("ENCRYPTION_KEY_HEX deve ter 32 bytes (64 caracteres hexadecimais) para AES-256")
	}

	keyMu.Lock()
	encryptionKey = key
	keyMu.Unlock()
	return usingDevKey, nil
}

func currentKey() ([]byte, error) {
	keyMu.RLock()
	defer keyMu.RUnlock()
	if encryptionKey == nil {
		return nil, errors.New("encryption key not configured")
	}
	return encryptionKey, nil
}

func newGCM() (cipher.AEAD, error) {
	key, err := currentKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts data using AES-GCM.
func Encrypt(plaintext string) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt decrypts data using AES-GCM.
func Decrypt(ciphertextHex string) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext muito curto")
	}

	nonce, encryptedMessage := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedMessage, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
