package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
)

// EncryptionMethod defines how secrets are protected at rest.
type EncryptionMethod string

const (
	EncryptionNone   EncryptionMethod = "none"
	EncryptionSSHKey EncryptionMethod = "ssh_key"
)

// EncryptionManager provides general-purpose encryption for chatd secrets
// (provider API keys, bearer tokens). The SSH-key method derives a stable
// AES-256 key from a signature made with the user's SSH private key, so the
// same key always decrypts previously stored secrets.
type EncryptionManager struct {
	method     EncryptionMethod
	sshKeyPath string
	passphrase string
	signer     ssh.Signer
	aesKey     []byte
}

func NewEncryptionManager(method EncryptionMethod, sshKeyPath string) *EncryptionManager {
	return &EncryptionManager{
		method:     method,
		sshKeyPath: sshKeyPath,
	}
}

// SetPassphrase sets the passphrase for decrypting an encrypted SSH key.
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Initialize loads the SSH key (if any) and derives the AES key.
func (e *EncryptionManager) Initialize() error {
	switch e.method {
	case EncryptionNone:
		return nil

	case EncryptionSSHKey:
		signer, err := loadSSHSigner(e.sshKeyPath, e.passphrase)
		if err != nil {
			return fmt.Errorf("failed to load SSH key: %w", err)
		}
		e.signer = signer

		aesKey, err := deriveAESKeyFromSSH(signer)
		if err != nil {
			return fmt.Errorf("failed to derive encryption key: %w", err)
		}
		e.aesKey = aesKey
		return nil

	default:
		return fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

// Encrypt encrypts data using the configured method. With EncryptionNone the
// plaintext is returned unchanged.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return plaintext, nil
	case EncryptionSSHKey:
		if e.aesKey == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		return encryptAESGCM(plaintext, e.aesKey)
	default:
		return nil, fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

// Decrypt decrypts data using the configured method.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return ciphertext, nil
	case EncryptionSSHKey:
		if e.aesKey == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		return decryptAESGCM(ciphertext, e.aesKey)
	default:
		return nil, fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

func (e *EncryptionManager) GetMethod() EncryptionMethod {
	return e.method
}

func loadSSHSigner(keyPath, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(ExpandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	if _, ok := err.(*ssh.PassphraseMissingError); ok {
		if passphrase == "" {
			return nil, fmt.Errorf("SSH key is encrypted - passphrase required")
		}
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}

	return nil, err
}

// deriveAESKeyFromSSH derives a 32-byte AES-256 key from an SSH key signature.
// Signing a fixed message yields a deterministic blob for deterministic key types.
func deriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	message := []byte("chatd-encryption-key-derivation-v1")

	signature, err := signer.Sign(rand.Reader, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	hash := sha256.Sum256(signature.Blob)
	return hash[:], nil
}

// encryptAESGCM encrypts data using AES-256-GCM.
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptAESGCM decrypts data produced by encryptAESGCM.
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
