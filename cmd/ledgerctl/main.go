package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

const usage = `ledgerctl manages operator keys and signed payloads for ledgerd.

Usage:
  ledgerctl keygen     -keystore PATH [-light]
  ledgerctl address    -keystore PATH
  ledgerctl sign-order -keystore PATH -chain-id N -ledger ADDR -type mint|redeem|income ...
  ledgerctl sign-claim -keystore PATH -chain-id N -distributor ADDR -claimer ADDR -id ID -amount N ...
  ledgerctl token      -subject ADDR [-secret-env VAR] [-issuer S] [-audience S] [-ttl D]

Keystore passphrases are read from LEDGER_KEYSTORE_PASSPHRASE or prompted for.
`

const passphraseEnv = "LEDGER_KEYSTORE_PASSPHRASE"

type command func(args []string, stdout io.Writer) error

var commands = map[string]command{
	"keygen":     runKeygen,
	"address":    runAddress,
	"sign-order": runSignOrder,
	"sign-claim": runSignClaim,
	"token":      runToken,
}

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) < 1 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err := cmd(args[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "ledgerctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
