package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/core/types"
)

const (
	TypeRoleGranted     = "access.role.granted"
	TypeRoleRevoked     = "access.role.revoked"
	TypeRegistryUpdated = "registry.updated"
	TypeOracleUpdated   = "oracle.price.updated"
)

// RoleChanged is emitted on grants and revocations.
type RoleChanged struct {
	Role    string
	Account common.Address
	Sender  common.Address
	Revoked bool
}

func (e RoleChanged) EventType() string {
	if e.Revoked {
		return TypeRoleRevoked
	}
	return TypeRoleGranted
}

func (e RoleChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"role":    e.Role,
			"account": formatAddress(e.Account),
			"sender":  formatAddress(e.Sender),
		},
	}
}

// RegistryUpdated covers signer, whitelist and operator changes.
type RegistryUpdated struct {
	Field   string
	Account common.Address
	Enabled bool
}

func (RegistryUpdated) EventType() string { return TypeRegistryUpdated }

func (e RegistryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRegistryUpdated,
		Attributes: map[string]string{
			"field":   e.Field,
			"account": formatAddress(e.Account),
			"enabled": strconv.FormatBool(e.Enabled),
		},
	}
}

// PriceUpdated is emitted by the reference price sources.
type PriceUpdated struct {
	Source    string
	Asset     common.Address
	Price     string
	UpdatedAt int64
}

func (PriceUpdated) EventType() string { return TypeOracleUpdated }

func (e PriceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleUpdated,
		Attributes: map[string]string{
			"source":    e.Source,
			"asset":     formatAddress(e.Asset),
			"price":     e.Price,
			"updatedAt": intToString(e.UpdatedAt),
		},
	}
}
