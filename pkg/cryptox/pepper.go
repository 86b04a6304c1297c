package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper loads the password pepper from path, generating and persisting a
// new one if the file does not exist. An empty path disables the pepper.
//
// Hashes are bound to the pepper they were created with, so the same file
// must be mounted wherever the clients and accounts files are used.
func LoadPepper(path string) error {
	if path == "" {
		SetPepper("")
		return nil
	}

	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		SetPepper(strings.TrimSpace(string(data)))
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		return fmt.Errorf("cryptox: write pepper: %w", err)
	}

	SetPepper(value)
	return nil
}

// SetPepper replaces the active pepper. Mostly useful in tests.
func SetPepper(value string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = value
}

// Pepper returns the active pepper, or "" when none is configured.
func Pepper() string {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	return pepper
}
