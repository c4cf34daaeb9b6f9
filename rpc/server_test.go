package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"stableledger/core"
	"stableledger/core/events"
	"stableledger/core/genesis"
	"stableledger/crypto"
	"stableledger/native/access"
	"stableledger/native/minting"
	"stableledger/rpc/middleware"
	"stableledger/storage"
	"stableledger/storage/eventlog"
)

const secret = "test-secret-test-secret-test-secret"

var (
	ledgerAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	rewardsAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stableAddr  = common.HexToAddress("0x5000000000000000000000000000000000000000")
	usdcAddr    = common.HexToAddress("0x6000000000000000000000000000000000000000")
	adminAddr   = common.HexToAddress("0xad00000000000000000000000000000000000000")
	managerAddr = common.HexToAddress("0xf000000000000000000000000000000000000000")
)

type apiFixture struct {
	handler http.Handler
	ledger  *core.Ledger
	journal *eventlog.Store
	signer  *crypto.PrivateKey
	user    common.Address
	now     int64
	nonce   int64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	signer, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	userKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	user := userKey.Address()

	spec := &genesis.GenesisSpec{
		ChainID: 31337,
		Ledger:  ledgerAddr.Hex(),
		Rewards: rewardsAddr.Hex(),
		Stable:  genesis.TokenSpec{Address: stableAddr.Hex(), Symbol: "USD", Decimals: 18},
		Collateral: []genesis.CollateralSpec{
			{TokenSpec: genesis.TokenSpec{Address: usdcAddr.Hex(), Symbol: "USDC", Decimals: 6}, HeartbeatSeconds: 3600},
		},
		Roles: map[string][]string{
			string(access.RoleAdmin):           {adminAddr.Hex()},
			string(access.RoleSettingsManager): {adminAddr.Hex()},
			string(access.RoleFundsManager):    {managerAddr.Hex()},
		},
		TrustedSigner: signer.Address().Hex(),
		Whitelist:     []string{user.Hex()},
		Alloc:         map[string]map[string]string{user.Hex(): {"USDC": "100000000"}},
	}

	f := &apiFixture{signer: signer, user: user, now: 1_700_000_000}
	f.ledger, err = core.NewLedger(storage.NewMemDB(), spec)
	require.NoError(t, err)
	f.ledger.SetNowFunc(func() int64 { return f.now })

	f.journal, err = eventlog.Open(eventlog.DriverSQLite, filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.journal.Close() })
	f.ledger.SetEmitter(f.journal)
	_, err = f.ledger.Bootstrap()
	require.NoError(t, err)

	f.handler, err = NewHandler(Config{
		Ledger:        f.ledger,
		Events:        f.journal,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: secret, AnonymousReads: true}, nil),
		Idempotency:   f.journal,
	})
	require.NoError(t, err)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, as common.Address, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if as != (common.Address{}) {
		token, err := middleware.IssueToken(secret, middleware.TokenRequest{Subject: as, TTL: time.Minute}, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func (f *apiFixture) signedOrder(t *testing.T, typ minting.OrderType, collateral, stable, slippage *big.Int, data string) SignedOrder {
	t.Helper()
	f.nonce++
	order := minting.Order{
		OrderType:              typ,
		UserWallet:             f.user,
		CollateralAsset:        usdcAddr,
		CollateralAmount:       collateral,
		StableAmount:           stable,
		SlippageAdjustedAmount: slippage,
		Expiry:                 uint64(f.now + 600),
		Nonce:                  big.NewInt(f.nonce),
	}
	if data != "" {
		encoded, err := minting.EncodeAdditionalData(data)
		require.NoError(t, err)
		order.AdditionalData = encoded
	}
	sig, err := minting.SignOrder(f.ledger.OrderDomain(), order, f.signer)
	require.NoError(t, err)
	return SignedOrder{Order: NewOrderJSON(order), Signature: sig}
}

func units(v int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out), res.Body.String())
	return out
}

func (f *apiFixture) mint(t *testing.T, collateral, stable *big.Int) mintResponse {
	t.Helper()
	res := f.do(t, http.MethodPost, "/v1/tokens/"+usdcAddr.Hex()+"/approve", f.user,
		approveTokenRequest{Spender: ledgerAddr.Hex(), Amount: collateral.String()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/mint", f.user, f.signedOrder(t, minting.OrderMint, collateral, stable, stable, ""))
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	return decodeBody[mintResponse](t, res)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	res := f.do(t, http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Header().Get(middleware.RequestIDHeader))
}

func TestMintOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	out := f.mint(t, units(10, 6), units(10, 18))
	require.Equal(t, units(10, 18).String(), out.Minted)
	require.Equal(t, "0", out.Fee)

	res := f.do(t, http.MethodGet, "/v1/tokens/"+stableAddr.Hex()+"/balances/"+f.user.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, units(10, 18).String(), decodeBody[amountResponse](t, res).Amount)

	res = f.do(t, http.MethodGet, "/v1/assets/"+usdcAddr.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, units(10, 6).String(), decodeBody[fundsJSON](t, res).CustodyBalance)

	res = f.do(t, http.MethodGet, "/v1/events?type="+events.TypeMint, common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	evts := decodeBody[[]eventJSON](t, res)
	require.Len(t, evts, 1)
	require.NotZero(t, evts[0].Sequence)
}

func TestMintReplayIsConflict(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedOrder(t, minting.OrderMint, units(1, 6), units(1, 18), units(1, 18), "")
	res := f.do(t, http.MethodPost, "/v1/tokens/"+usdcAddr.Hex()+"/approve", f.user,
		approveTokenRequest{Spender: ledgerAddr.Hex(), Amount: units(2, 6).String()})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodPost, "/v1/mint", f.user, body)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/mint", f.user, body)
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "InvalidNonce", decodeBody[middleware.ErrorBody](t, res).Code)
}

func TestIdempotencyKeyReplaysMint(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedOrder(t, minting.OrderMint, units(1, 6), units(1, 18), units(1, 18), "")
	res := f.do(t, http.MethodPost, "/v1/tokens/"+usdcAddr.Hex()+"/approve", f.user,
		approveTokenRequest{Spender: ledgerAddr.Hex(), Amount: units(1, 6).String()})
	require.Equal(t, http.StatusOK, res.Code)

	first := f.do(t, http.MethodPost, "/v1/mint", f.user, body, middleware.IdempotencyHeader, "mint-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := f.do(t, http.MethodPost, "/v1/mint", f.user, body, middleware.IdempotencyHeader, "mint-1")
	require.Equal(t, http.StatusOK, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestMutationsRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedOrder(t, minting.OrderMint, units(1, 6), units(1, 18), units(1, 18), "")
	res := f.do(t, http.MethodPost, "/v1/mint", common.Address{}, body)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCallerMustMatchOrderWallet(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedOrder(t, minting.OrderMint, units(1, 6), units(1, 18), units(1, 18), "")
	res := f.do(t, http.MethodPost, "/v1/mint", adminAddr, body)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "InvalidSender", decodeBody[middleware.ErrorBody](t, res).Code)
}

func TestAdminSettings(t *testing.T) {
	f := newAPIFixture(t)
	res := f.do(t, http.MethodPost, "/v1/admin/fees/mint", f.user, bpRequest{BP: 50})
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "Unauthorized", decodeBody[middleware.ErrorBody](t, res).Code)

	res = f.do(t, http.MethodPost, "/v1/admin/fees/mint", adminAddr, bpRequest{BP: 50})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/admin/fees/mint", adminAddr, bpRequest{BP: 10_001})
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = f.do(t, http.MethodPost, "/v1/admin/fees/bogus", adminAddr, bpRequest{BP: 1})
	require.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodPost, "/v1/admin/limits/mint", adminAddr, limitsRequest{PeriodSeconds: 3600, MaxAmount: units(5, 18).String()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, "/v1/settings", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, uint64(50), decodeBody[settingsJSON](t, res).MintFeeBP)

	res = f.do(t, http.MethodGet, "/v1/limits", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	limits := decodeBody[limitsResponse](t, res)
	require.Equal(t, uint64(3600), limits.Mint.PeriodSeconds)
	require.Equal(t, units(5, 18).String(), limits.Mint.MaxAmount)
}

func TestRoleEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	res := f.do(t, http.MethodPost, "/v1/admin/roles/rewards_manager", adminAddr, accountRequest{Account: managerAddr.Hex()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, "/v1/roles/REWARDS_MANAGER/"+managerAddr.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decodeBody[flagResponse](t, res).Value)

	res = f.do(t, http.MethodDelete, "/v1/admin/roles/REWARDS_MANAGER/"+managerAddr.Hex(), adminAddr, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = f.do(t, http.MethodGet, "/v1/roles/REWARDS_MANAGER/"+managerAddr.Hex(), common.Address{}, nil)
	require.False(t, decodeBody[flagResponse](t, res).Value)

	res = f.do(t, http.MethodPost, "/v1/admin/roles/nobody", adminAddr, accountRequest{Account: managerAddr.Hex()})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRedeemOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.mint(t, units(20, 6), units(20, 18))
	res := f.do(t, http.MethodPost, "/v1/tokens/"+stableAddr.Hex()+"/approve", f.user,
		approveTokenRequest{Spender: ledgerAddr.Hex(), Amount: units(20, 18).String()})
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodPost, "/v1/redeem/request", f.user,
		f.signedOrder(t, minting.OrderRedeem, units(5, 6), units(5, 18), units(4, 6), "r-1"))
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	created := decodeBody[redeemRequestJSON](t, res)
	require.Equal(t, "r-1", created.ID)
	require.Equal(t, "PENDING", created.Status)

	res = f.do(t, http.MethodGet, "/v1/redeem/locked", common.Address{}, nil)
	require.Equal(t, units(5, 18).String(), decodeBody[amountResponse](t, res).Amount)

	// collateral is all in custody, nothing untracked to pay from
	res = f.do(t, http.MethodPost, "/v1/redeem/r-1/approve", managerAddr, approveRequest{Amount: units(5, 6).String()})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "NotEnoughFunds", decodeBody[middleware.ErrorBody](t, res).Code)

	res = f.do(t, http.MethodPost, "/v1/redeem/r-1/reject", f.user, nil)
	require.Equal(t, http.StatusForbidden, res.Code)
	res = f.do(t, http.MethodPost, "/v1/redeem/r-1/reject", managerAddr, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, "/v1/redeem/r-1", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "REJECTED", decodeBody[redeemRequestJSON](t, res).Status)

	res = f.do(t, http.MethodGet, "/v1/redeem?status=PENDING", common.Address{}, nil)
	require.Empty(t, decodeBody[[]redeemRequestJSON](t, res))

	res = f.do(t, http.MethodGet, "/v1/redeem/missing", common.Address{}, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestBadRequests(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/mint", bytes.NewBufferString("{not json"))
	token, err := middleware.IssueToken(secret, middleware.TokenRequest{Subject: f.user}, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/v1/mint", f.user, map[string]any{"order": map[string]any{"userWallet": "nope"}})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodGet, "/v1/assets/not-an-address", common.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodGet, "/v1/events?limit=-1", common.Address{}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestVerifyOrderDoesNotConsumeNonce(t *testing.T) {
	f := newAPIFixture(t)
	body := f.signedOrder(t, minting.OrderMint, units(1, 6), units(1, 18), units(1, 18), "")
	for i := 0; i < 2; i++ {
		res := f.do(t, http.MethodPost, "/v1/orders/verify", f.user, body)
		require.Equal(t, http.StatusOK, res.Code)
		require.True(t, decodeBody[verifyResponse](t, res).Valid)
	}
	body.Signature[10] ^= 0xff
	res := f.do(t, http.MethodPost, "/v1/orders/verify", f.user, body)
	out := decodeBody[verifyResponse](t, res)
	require.False(t, out.Valid)
	require.Equal(t, "InvalidSignature", out.Code)
}

func TestOrderJSONRoundTrip(t *testing.T) {
	data, err := minting.EncodeAdditionalData("snap-1")
	require.NoError(t, err)
	order := minting.Order{
		OrderType:        minting.OrderDepositIncome,
		UserWallet:       managerAddr,
		CollateralAsset:  usdcAddr,
		CollateralAmount: units(3, 6),
		StableAmount:     units(3, 18),
		Expiry:           42,
		Nonce:            big.NewInt(7),
		AdditionalData:   data,
	}
	raw, err := json.Marshal(NewOrderJSON(order))
	require.NoError(t, err)
	var decoded OrderJSON
	require.NoError(t, json.Unmarshal(raw, &decoded))
	back, err := decoded.ToOrder()
	require.NoError(t, err)
	require.Equal(t, order.CollateralAmount, back.CollateralAmount)
	require.Equal(t, order.AdditionalData, back.AdditionalData)
	require.Nil(t, back.SlippageAdjustedAmount)

	id, err := ParseRewardID("snap-1")
	require.NoError(t, err)
	hexID, err := ParseRewardID(common.BytesToHash(id[:]).Hex())
	require.NoError(t, err)
	require.Equal(t, id, hexID)
	_, err = ParseRewardID("0x1234")
	require.Error(t, err)
}
