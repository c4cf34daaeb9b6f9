package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"stableledger/config"
	"stableledger/rpc/middleware"
)

func runToken(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "account the token authenticates")
	secretEnv := fs.String("secret-env", config.DefaultSecretEnv, "environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "", "token issuer")
	audience := fs.String("audience", "", "token audience")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return fmt.Errorf("%s is not set", *secretEnv)
	}
	who, err := parseAddressFlag("subject", *subject)
	if err != nil {
		return err
	}
	token, err := middleware.IssueToken(secret, middleware.TokenRequest{
		Subject:  who,
		Issuer:   *issuer,
		Audience: *audience,
		TTL:      *ttl,
	}, nowFn())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
