package crypto

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

// KeystoreOptions tunes the scrypt cost used when encrypting keys. The zero
// value selects the standard parameters.
type KeystoreOptions struct {
	ScryptN int
	ScryptP int
}

// LightKeystore selects the cheap scrypt parameters used by tests and dev
// signers.
var LightKeystore = KeystoreOptions{ScryptN: keystore.LightScryptN, ScryptP: keystore.LightScryptP}

func (o KeystoreOptions) params() (int, int) {
	n, p := o.ScryptN, o.ScryptP
	if n <= 0 {
		n = keystore.StandardScryptN
	}
	if p <= 0 {
		p = keystore.StandardScryptP
	}
	return n, p
}

// SaveToKeystore writes the key to an Ethereum v3 keystore file at path,
// creating the parent directory with 0700 permissions when needed.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, opts KeystoreOptions) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	n, p := opts.params()
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    key.Address(),
		PrivateKey: key.PrivateKey,
	}, passphrase, n, p)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, encrypted, 0o600)
}

// LoadFromKeystore decrypts an Ethereum v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
