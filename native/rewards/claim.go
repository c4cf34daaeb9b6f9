package rewards

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"

	"stableledger/core/events"
	"stableledger/crypto"
)

const (
	DomainName    = "StableRewards"
	DomainVersion = "1"
)

// ClaimRequest is a signed batch of per-pool claim amounts.
type ClaimRequest struct {
	Claimer common.Address
	IDs     [][32]byte
	Amounts []*big.Int
}

var claimDomainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

var claimFields = []apitypes.Type{
	{Name: "claimer", Type: "address"},
	{Name: "ids", Type: "bytes32[]"},
	{Name: "amounts", Type: "uint256[]"},
}

// TypedData renders the claim as an EIP-712 payload bound to the distributor.
func (r ClaimRequest) TypedData(chainID *big.Int, distributor common.Address) apitypes.TypedData {
	ids := make([]interface{}, 0, len(r.IDs))
	for _, id := range r.IDs {
		ids = append(ids, hexutil.Bytes(append([]byte{}, id[:]...)))
	}
	amounts := make([]interface{}, 0, len(r.Amounts))
	for _, amount := range r.Amounts {
		if amount == nil {
			amount = big.NewInt(0)
		}
		amounts = append(amounts, new(big.Int).Set(amount))
	}
	chain := big.NewInt(0)
	if chainID != nil {
		chain = new(big.Int).Set(chainID)
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": claimDomainFields,
			"ClaimRequest": claimFields,
		},
		PrimaryType: "ClaimRequest",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(chain),
			VerifyingContract: distributor.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"claimer": r.Claimer.Hex(),
			"ids":     ids,
			"amounts": amounts,
		},
	}
}

// Digest returns the EIP-712 hash the trusted signer signs.
func (r ClaimRequest) Digest(chainID *big.Int, distributor common.Address) ([]byte, error) {
	return crypto.HashTypedData(r.TypedData(chainID, distributor))
}

// SignClaim produces the detached signature for a claim request.
func SignClaim(chainID *big.Int, distributor common.Address, req ClaimRequest, key *crypto.PrivateKey) ([]byte, error) {
	digest, err := req.Digest(chainID, distributor)
	if err != nil {
		return nil, err
	}
	return crypto.SignDigest(digest, key)
}

func (e *Engine) verifyClaim(req ClaimRequest, signature []byte) error {
	if e.signer == nil {
		return ErrInvalidSignature
	}
	digest, err := req.Digest(e.cfg.ChainID, e.cfg.Address)
	if err != nil {
		return ErrInvalidParams
	}
	recovered, err := crypto.RecoverDigest(digest, signature)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return err
	}
	trusted, err := e.signer.TrustedSigner()
	if err != nil {
		return err
	}
	if trusted == (common.Address{}) || recovered != trusted {
		return ErrInvalidSignature
	}
	return nil
}

// ClaimRewards pays the claimer from every finalized, unexpired pool in the
// batch that it has not drawn from yet. Each pool contributes at most its
// remaining balance.
func (e *Engine) ClaimRewards(caller common.Address, req ClaimRequest, signature []byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(req.IDs) != len(req.Amounts) {
		return nil, ErrInvalidParams
	}
	if caller != req.Claimer {
		return nil, ErrInvalidClaimer
	}
	for _, amount := range req.Amounts {
		if amount == nil || amount.Sign() < 0 {
			return nil, ErrInvalidParams
		}
		if _, overflow := uint256.FromBig(amount); overflow {
			return nil, ErrInvalidParams
		}
	}
	if err := e.verifyClaim(req, signature); err != nil {
		return nil, err
	}

	now := e.now()
	total := new(big.Int)
	paid := make([][32]byte, 0, len(req.IDs))
	// Payouts are grouped by the vault that funded each pool, in first-seen
	// order so transfers are deterministic.
	var vaults []common.Address
	owed := make(map[common.Address]*big.Int)
	for i, id := range req.IDs {
		requested := req.Amounts[i]
		if requested.Sign() == 0 {
			continue
		}
		reward, err := e.loadReward(id)
		if err != nil {
			return nil, err
		}
		if !reward.Finalized || reward.Expired(now) || reward.Amount.Sign() == 0 {
			continue
		}
		claimed, err := e.Claimed(id, req.Claimer)
		if err != nil {
			return nil, err
		}
		if claimed {
			continue
		}
		amount := new(big.Int).Set(requested)
		if amount.Cmp(reward.Amount) > 0 {
			amount.Set(reward.Amount)
		}
		reward.Amount = new(big.Int).Sub(reward.Amount, amount)
		if err := e.storeReward(reward); err != nil {
			return nil, err
		}
		if err := e.state.KVPut(claimedKey(id, req.Claimer), true); err != nil {
			return nil, err
		}
		vault, err := e.payer(reward)
		if err != nil {
			return nil, err
		}
		if _, ok := owed[vault]; !ok {
			vaults = append(vaults, vault)
			owed[vault] = new(big.Int)
		}
		owed[vault].Add(owed[vault], amount)
		total.Add(total, amount)
		paid = append(paid, id)
	}
	if total.Sign() == 0 {
		return nil, ErrZeroRewards
	}
	for _, vault := range vaults {
		if err := e.token.Transfer(e.cfg.StableToken, vault, req.Claimer, owed[vault]); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(events.RewardsClaimed{Claimer: req.Claimer, IDs: paid, Amount: new(big.Int).Set(total)})
	return total, nil
}
