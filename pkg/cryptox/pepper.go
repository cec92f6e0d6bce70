package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile string
)

// SetPepperPath sets the file the pepper is read from (or written to on
// first use). Resets any pepper already loaded.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperFile = file
	pepper = ""
}

// GetPepper returns the process pepper, loading or generating it on first
// call.
func GetPepper() (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper, nil
	}
	if pepperFile == "" {
		return "", errors.New("cryptox: pepper path not configured")
	}

	p, err := loadOrGeneratePepper(pepperFile)
	if err != nil {
		return "", err
	}
	pepper = p
	return pepper, nil
}

func loadOrGeneratePepper(file string) (string, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return "", err
	}

	data, err := os.ReadFile(file)
	if err == nil {
		if len(data) == 0 {
			return "", errors.New("cryptox: pepper file is empty")
		}
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(file, []byte(p), 0o600); err != nil {
		return "", err
	}
	return p, nil
}
