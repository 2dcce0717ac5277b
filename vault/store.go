package vault

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

// SecretStore holds a single secret. Saving replaces whatever was there.
type SecretStore interface {
	// Load returns ErrNoSecret if no secret has been saved
	Load() (Secret, error)
	Save(Secret) error
}

// FileStore keeps the secret as plain text in a single file
type FileStore struct {
	Path string
}

func (fs *FileStore) Load() (Secret, error) {
	log.Printf("Reading secret from %s", fs.Path)
	b, err := os.ReadFile(fs.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSecret
	} else if err != nil {
		return "", err
	}

	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", ErrNoSecret
	}

	return Secret(s), nil
}

// Save writes the secret to a temporary file alongside Path and renames it into
// place, so the file always holds either the old or the new secret.
func (fs *FileStore) Save(secret Secret) error {
	dir := filepath.Dir(fs.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(fs.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err = f.Chmod(0600); err != nil {
		f.Close()
		return err
	}
	if _, err = f.WriteString(secret.String()); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	if err = os.Rename(f.Name(), fs.Path); err != nil {
		return err
	}
	log.Printf("Wrote secret to %s", fs.Path)

	return nil
}

func (fs *FileStore) String() string {
	return fs.Path
}

// KeyringStore keeps the secret as a single item in a keyring
type KeyringStore struct {
	Keyring keyring.Keyring
	Key     string
}

func (ks *KeyringStore) Load() (Secret, error) {
	log.Printf("Looking up keyring for %s", ks.Key)
	item, err := ks.Keyring.Get(ks.Key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoSecret
	} else if err != nil {
		return "", err
	}

	s := strings.TrimSpace(string(item.Data))
	if s == "" {
		return "", ErrNoSecret
	}

	return Secret(s), nil
}

func (ks *KeyringStore) Save(secret Secret) error {
	return ks.Keyring.Set(keyring.Item{
		Key:         ks.Key,
		Label:       fmt.Sprintf("totp-vault (%s)", ks.Key),
		Description: "TOTP shared secret",
		Data:        []byte(secret),

		// specific Keychain settings
		KeychainNotTrustApplication: true,
	})
}

func (ks *KeyringStore) String() string {
	return "keyring:" + ks.Key
}
