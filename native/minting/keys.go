package minting

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	settingsKey         = []byte("minting/settings")
	mintWindowKey       = []byte("minting/limit/mint")
	redeemWindowKey     = []byte("minting/limit/redeem")
	redeemLockedKey     = []byte("minting/redeem-locked")
	redeemRequestPrefix = []byte("minting/redeem/")
	assetPrefix         = []byte("minting/asset/")
	fundsPrefix         = []byte("minting/funds/")
	custodianPrefix     = []byte("minting/custodian/")
	orderNoncePrefix    = []byte("minting/nonce/")
)

func addrKey(prefix []byte, addr common.Address) []byte {
	hex := strings.ToLower(addr.Hex())
	buf := make([]byte, len(prefix)+len(hex))
	copy(buf, prefix)
	copy(buf[len(prefix):], hex)
	return buf
}

func assetKey(asset common.Address) []byte { return addrKey(assetPrefix, asset) }

func fundsKey(asset common.Address) []byte { return addrKey(fundsPrefix, asset) }

func custodianKey(custodian common.Address) []byte { return addrKey(custodianPrefix, custodian) }

func redeemRequestKey(id string) []byte {
	buf := make([]byte, len(redeemRequestPrefix)+len(id))
	copy(buf, redeemRequestPrefix)
	copy(buf[len(redeemRequestPrefix):], id)
	return buf
}

func orderNonceKey(order Order) []byte {
	nonce := "0"
	if order.Nonce != nil {
		nonce = order.Nonce.String()
	}
	return []byte(string(addrKey(orderNoncePrefix, order.UserWallet)) + "/" + nonce)
}
