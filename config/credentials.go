package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CredentialStore persists provider auth material (API keys, bearer tokens)
// under the data directory, optionally encrypted with the user's SSH key.
//
// The on-disk format is a JSON map of credential id to base64 ciphertext so
// the file stays greppable for ids without exposing secrets.
type CredentialStore struct {
	mu         sync.Mutex
	path       string
	encManager *EncryptionManager
}

func NewCredentialStore(dataDir string, encManager *EncryptionManager) *CredentialStore {
	return &CredentialStore{
		path:       filepath.Join(dataDir, "credentials.json"),
		encManager: encManager,
	}
}

func (c *CredentialStore) GetEncryptionManager() *EncryptionManager {
	return c.encManager
}

// Set stores a secret under the given id, replacing any previous value.
func (c *CredentialStore) Set(id, secret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := c.load()
	if err != nil {
		return err
	}

	ciphertext, err := c.encManager.Encrypt([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential %s: %w", id, err)
	}

	creds[id] = base64.StdEncoding.EncodeToString(ciphertext)
	return c.save(creds)
}

// Get returns the secret for id, or an empty string if none is stored.
func (c *CredentialStore) Get(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := c.load()
	if err != nil {
		return "", err
	}

	encoded, ok := creds[id]
	if !ok {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("corrupt credential %s: %w", id, err)
	}

	plaintext, err := c.encManager.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential %s: %w", id, err)
	}

	return string(plaintext), nil
}

// Delete removes the secret for id. Deleting an unknown id is a no-op.
func (c *CredentialStore) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := c.load()
	if err != nil {
		return err
	}

	if _, ok := creds[id]; !ok {
		return nil
	}

	delete(creds, id)
	return c.save(creds)
}

func (c *CredentialStore) load() (map[string]string, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	creds := map[string]string{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return creds, nil
}

func (c *CredentialStore) save(creds map[string]string) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// 0600 - credential material
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}
