package minting

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/crypto"
)

func TestAdditionalDataRoundTrip(t *testing.T) {
	encoded, err := EncodeAdditionalData("redeem-42")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeAdditionalData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != "redeem-42" {
		t.Fatalf("unexpected id %q", decoded)
	}
	if _, err := DecodeAdditionalData([]byte{0x01}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestSnapshotID(t *testing.T) {
	id, err := SnapshotID("test")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if string(id[:4]) != "test" || id[4] != 0 || id[31] != 0 {
		t.Fatalf("expected right padded id, got %x", id)
	}
	if _, err := SnapshotID("this identifier is far too long!"); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	for _, raw := range []string{"", " test", "test ", "\ttest"} {
		if _, err := SnapshotID(raw); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("SnapshotID(%q): expected ErrInvalidOrder, got %v", raw, err)
		}
	}
}

func TestOrderDigestBindsDomainAndFields(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	domain := Domain{ChainID: big.NewInt(1), VerifyingContract: common.HexToAddress("0x1")}
	order := Order{
		OrderType:              OrderMint,
		UserWallet:             common.HexToAddress("0x2"),
		CollateralAsset:        common.HexToAddress("0x3"),
		CollateralAmount:       big.NewInt(10),
		StableAmount:           big.NewInt(9),
		SlippageAdjustedAmount: big.NewInt(8),
		Expiry:                 100,
		Nonce:                  big.NewInt(1),
	}
	digest, err := order.Digest(domain)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := SignOrder(domain, order, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signer, err := crypto.RecoverDigest(digest, sig)
	if err != nil || signer != key.Address() {
		t.Fatalf("unexpected signer %s: %v", signer.Hex(), err)
	}

	otherDomain := domain
	otherDomain.ChainID = big.NewInt(2)
	other, err := order.Digest(otherDomain)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if string(other) == string(digest) {
		t.Fatalf("digest must change with the chain id")
	}
	changed := order
	changed.Nonce = big.NewInt(2)
	if d, _ := changed.Digest(domain); string(d) == string(digest) {
		t.Fatalf("digest must change with the nonce")
	}
}
