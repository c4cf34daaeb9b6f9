package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/types"
)

const (
	TypeBankTransfer    = "bank.transfer"
	TypeBankApproval    = "bank.approval"
	TypeBankBlacklisted = "bank.blacklist"
)

// Transfer is emitted for every balance movement. Mints carry a zero From and
// burns a zero To.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeBankTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeBankTransfer,
		Attributes: map[string]string{
			"token":  formatAddress(e.Token),
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

type Approval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeBankApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeBankApproval,
		Attributes: map[string]string{
			"token":   formatAddress(e.Token),
			"owner":   formatAddress(e.Owner),
			"spender": formatAddress(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}

type Blacklisted struct {
	Token   common.Address
	Account common.Address
	Listed  bool
}

func (Blacklisted) EventType() string { return TypeBankBlacklisted }

func (e Blacklisted) Event() *types.Event {
	return &types.Event{
		Type: TypeBankBlacklisted,
		Attributes: map[string]string{
			"token":   formatAddress(e.Token),
			"account": formatAddress(e.Account),
			"listed":  strconv.FormatBool(e.Listed),
		},
	}
}
