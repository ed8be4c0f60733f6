package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const pepperBytes = 32

// The pepper is a process wide secret mixed into every password and code
// hash. It lives in a file next to the database so that a leaked database
// alone can't be brute forced.
var pepperState struct {
	sync.Mutex
	path  string
	value string
}

func init() { pepperState.path = "pepper" }

// SetPepperPath selects the pepper file and forgets any cached value. The
// file is created on first use if missing.
func SetPepperPath(path string) {
	pepperState.Lock()
	defer pepperState.Unlock()
	pepperState.path, pepperState.value = path, ""
}

// SetPepper pins the pepper in memory without touching the file.
func SetPepper(p string) {
	pepperState.Lock()
	defer pepperState.Unlock()
	pepperState.value = p
}

// GetPepper returns the cached pepper, reading or creating the file on
// first use. An unusable pepper file is fatal: hashing without it would
// lock every existing client out.
func GetPepper() string {
	pepperState.Lock()
	defer pepperState.Unlock()
	if pepperState.value == "" {
		p, err := readOrCreatePepper(pepperState.path)
		if err != nil {
			slog.Error("pepper unavailable", "path", pepperState.path, "err", err)
			os.Exit(1)
		}
		pepperState.value = p
	}
	return pepperState.value
}

func readOrCreatePepper(path string) (string, error) {
	path = filepath.Clean(path)
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if p := strings.TrimSpace(string(b)); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("pepper file %s is empty", path)
	case !errors.Is(err, fs.ErrNotExist):
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	buf := make([]byte, pepperBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(p), 0o600); err != nil {
		return "", err
	}
	return p, nil
}
