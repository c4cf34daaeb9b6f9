package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"stableledger/cmd/internal/passphrase"
	"stableledger/crypto"
)

// passphrases resolves the keystore passphrase, asking twice when a new
// keystore is written.
var passphrases = func(confirm bool) interface{ Get() (string, error) } {
	src := passphrase.NewSource(passphraseEnv)
	if confirm {
		src = src.WithConfirmation()
	}
	return src
}

func runKeygen(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("keystore", "", "keystore file to create")
	light := fs.Bool("light", false, "use light scrypt parameters (development only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("-keystore is required")
	}
	pass, err := passphrases(true).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	opts := crypto.KeystoreOptions{}
	if *light {
		opts = crypto.LightKeystore
	}
	if err := crypto.SaveToKeystore(*path, key, pass, opts); err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, key.Address().Hex())
	return err
}

func runAddress(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	path := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, key.Address().Hex())
	return err
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("-keystore is required")
	}
	pass, err := passphrases(false).Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}
	return key, nil
}
