package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/crypto"
	"stableledger/native/minting"
	"stableledger/rpc"
	"stableledger/rpc/middleware"
)

const (
	testLedger      = "0x00000000000000000000000000000000000000aa"
	testDistributor = "0x00000000000000000000000000000000000000bb"
	testWallet      = "0x0000000000000000000000000000000000000c01"
	testAsset       = "0x0000000000000000000000000000000000000d01"
)

func newTestKeystore(t *testing.T) (string, common.Address) {
	t.Helper()
	t.Setenv(passphraseEnv, "correct horse battery staple")
	path := filepath.Join(t.TempDir(), "signer.json")
	var out bytes.Buffer
	var errOut bytes.Buffer
	if code := dispatch([]string{"keygen", "-keystore", path, "-light"}, &out, &errOut); code != 0 {
		t.Fatalf("keygen exit %d: %s", code, errOut.String())
	}
	addr := strings.TrimSpace(out.String())
	if !common.IsHexAddress(addr) {
		t.Fatalf("keygen printed %q", addr)
	}
	return path, common.HexToAddress(addr)
}

func TestDispatchUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := dispatch(nil, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2 without args, got %d", code)
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("usage not printed: %q", errOut.String())
	}
	errOut.Reset()
	if code := dispatch([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
	if code := dispatch([]string{"help"}, &out, &errOut); code != 0 {
		t.Fatalf("expected exit 0 for help, got %d", code)
	}
}

func TestKeygenAndAddress(t *testing.T) {
	path, addr := newTestKeystore(t)
	var out, errOut bytes.Buffer
	if code := dispatch([]string{"address", "-keystore", path}, &out, &errOut); code != 0 {
		t.Fatalf("address exit %d: %s", code, errOut.String())
	}
	if got := common.HexToAddress(strings.TrimSpace(out.String())); got != addr {
		t.Fatalf("address mismatch: %s vs %s", got.Hex(), addr.Hex())
	}
}

func TestSignOrderRecoversSigner(t *testing.T) {
	path, signer := newTestKeystore(t)
	fixed := time.Unix(1_700_000_000, 0)
	nowFn = func() time.Time { return fixed }
	t.Cleanup(func() { nowFn = time.Now })

	var out, errOut bytes.Buffer
	args := []string{"sign-order",
		"-keystore", path,
		"-chain-id", "1337",
		"-ledger", testLedger,
		"-type", "mint",
		"-wallet", testWallet,
		"-asset", testAsset,
		"-collateral", "1000000",
		"-stable", "1000000000000000000",
		"-expires-in", "5m",
	}
	if code := dispatch(args, &out, &errOut); code != 0 {
		t.Fatalf("sign-order exit %d: %s", code, errOut.String())
	}
	var signed rpc.SignedOrder
	if err := json.Unmarshal(out.Bytes(), &signed); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	order, err := signed.Order.ToOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if order.OrderType != minting.OrderMint {
		t.Fatalf("unexpected order type %v", order.OrderType)
	}
	if order.Expiry != uint64(fixed.Add(5*time.Minute).Unix()) {
		t.Fatalf("unexpected expiry %d", order.Expiry)
	}
	if order.Nonce.Cmp(big.NewInt(fixed.UnixNano())) != 0 {
		t.Fatalf("unexpected nonce %s", order.Nonce)
	}
	domain := minting.Domain{ChainID: big.NewInt(1337), VerifyingContract: common.HexToAddress(testLedger)}
	digest, err := order.Digest(domain)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	recovered, err := crypto.RecoverDigest(digest, signed.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), signer.Hex())
	}
}

func TestSignOrderRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"missing chain": {"sign-order", "-ledger", testLedger},
		"bad type":      {"sign-order", "-chain-id", "1", "-type", "swap"},
		"bad wallet":    {"sign-order", "-chain-id", "1", "-ledger", testLedger, "-wallet", "nope"},
	}
	for name, args := range cases {
		var out, errOut bytes.Buffer
		if code := dispatch(args, &out, &errOut); code != 1 {
			t.Fatalf("%s: expected exit 1, got %d (%s)", name, code, errOut.String())
		}
	}
}

func TestSignClaimRecoversSigner(t *testing.T) {
	path, signer := newTestKeystore(t)
	var out, errOut bytes.Buffer
	args := []string{"sign-claim",
		"-keystore", path,
		"-chain-id", "1337",
		"-distributor", testDistributor,
		"-claimer", testWallet,
		"-id", "2024-Q1", "-amount", "500",
		"-id", "2024-Q2", "-amount", "700",
	}
	if code := dispatch(args, &out, &errOut); code != 0 {
		t.Fatalf("sign-claim exit %d: %s", code, errOut.String())
	}
	var signed rpc.SignedClaim
	if err := json.Unmarshal(out.Bytes(), &signed); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	req, err := signed.Claim.ToClaimRequest()
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(req.IDs) != 2 || req.Amounts[1].Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("unexpected claim %+v", req)
	}
	q1, _ := minting.SnapshotID("2024-Q1")
	if req.IDs[0] != q1 {
		t.Fatalf("snapshot id not derived from name")
	}
	digest, err := req.Digest(big.NewInt(1337), common.HexToAddress(testDistributor))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	recovered, err := crypto.RecoverDigest(digest, signed.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), signer.Hex())
	}
}

func TestSignClaimRequiresMatchingAmounts(t *testing.T) {
	var out, errOut bytes.Buffer
	args := []string{"sign-claim", "-chain-id", "1", "-id", "a", "-id", "b", "-amount", "1"}
	if code := dispatch(args, &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestTokenAuthenticates(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	t.Setenv("LEDGER_TEST_TOKEN_SECRET", secret)
	var out, errOut bytes.Buffer
	args := []string{"token",
		"-subject", testWallet,
		"-secret-env", "LEDGER_TEST_TOKEN_SECRET",
		"-issuer", "ledger-ops",
		"-ttl", "10m",
	}
	if code := dispatch(args, &out, &errOut); code != 0 {
		t.Fatalf("token exit %d: %s", code, errOut.String())
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: secret, Issuer: "ledger-ops"}, nil)
	caller, err := auth.Authenticate(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller != common.HexToAddress(testWallet) {
		t.Fatalf("unexpected caller %s", caller.Hex())
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("LEDGER_TEST_TOKEN_SECRET", "")
	var out, errOut bytes.Buffer
	args := []string{"token", "-subject", testWallet, "-secret-env", "LEDGER_TEST_TOKEN_SECRET"}
	if code := dispatch(args, &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
