package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/types"
)

const (
	TypeRewardsDeposited       = "rewards.deposited"
	TypeRewardsFinalized       = "rewards.finalized"
	TypeRewardsClaimed         = "rewards.claimed"
	TypeRewardsExpiredWithdraw = "rewards.expired_withdrawn"
)

// RewardsDeposited is emitted when a pool receives income.
type RewardsDeposited struct {
	ID        [32]byte
	Amount    *big.Int
	Timestamp int64
}

func (RewardsDeposited) EventType() string { return TypeRewardsDeposited }

func (e RewardsDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsDeposited,
		Attributes: map[string]string{
			"id":        formatID(e.ID),
			"amount":    formatAmount(e.Amount),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// RewardsFinalized is emitted when a pool opens for claims.
type RewardsFinalized struct {
	ID     [32]byte
	Expiry int64
}

func (RewardsFinalized) EventType() string { return TypeRewardsFinalized }

func (e RewardsFinalized) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsFinalized,
		Attributes: map[string]string{
			"id":     formatID(e.ID),
			"expiry": intToString(e.Expiry),
		},
	}
}

// RewardsClaimed is emitted once per successful batch claim.
type RewardsClaimed struct {
	Claimer common.Address
	IDs     [][32]byte
	Amount  *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, formatID(id))
	}
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"claimer": formatAddress(e.Claimer),
			"ids":     strings.Join(ids, ","),
			"count":   strconv.Itoa(len(ids)),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// RewardsExpiredWithdrawn is emitted when an expired pool is swept.
type RewardsExpiredWithdrawn struct {
	ID     [32]byte
	To     common.Address
	Amount *big.Int
}

func (RewardsExpiredWithdrawn) EventType() string { return TypeRewardsExpiredWithdraw }

func (e RewardsExpiredWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsExpiredWithdraw,
		Attributes: map[string]string{
			"id":     formatID(e.ID),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}
