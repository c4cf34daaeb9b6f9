package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatAddress(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

// formatID renders a bytes32 snapshot identifier as its trimmed UTF-8 text when
// printable and as hex otherwise.
func formatID(id [32]byte) string {
	trimmed := strings.TrimRight(string(id[:]), "\x00")
	for _, r := range trimmed {
		if r < 0x20 || r > 0x7e {
			return "0x" + hex.EncodeToString(id[:])
		}
	}
	return trimmed
}
