package rpc

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stableledger/native/access"
	"stableledger/rpc/middleware"
)

func (s *Server) mountAdmin(r chi.Router) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/fees/{kind}", s.handleSetFee)
		ar.Post("/limits/{kind}", s.handleSetLimits)
		ar.Post("/pause/{kind}", s.handleSetPaused)
		ar.Post("/insurance-fund", s.handleSetInsuranceFund)
		ar.Post("/rewards-address", s.handleSetRewardsAddress)
		ar.Post("/feed", s.handleSetFeedEnabled)
		ar.Post("/oracle", s.handleSetOracleEnabled)
		ar.Post("/oracle/heartbeat", s.handleSetOracleHeartbeat)

		ar.Post("/assets", s.handleAddAsset)
		ar.Delete("/assets/{asset}", s.handleRemoveAsset)
		ar.Post("/custodians", s.handleAddCustodian)
		ar.Delete("/custodians/{custodian}", s.handleRemoveCustodian)
		ar.Post("/roles/{role}", s.handleGrantRole)
		ar.Delete("/roles/{role}/{account}", s.handleRevokeRole)

		ar.Post("/signer", s.handleSetTrustedSigner)
		ar.Post("/whitelist", s.handleSetWhitelisted)
		ar.Post("/operators", s.handleSetOperator)
		ar.Post("/blacklist", s.handleSetBlacklisted)
	})
}

// exec decodes body (when non-nil) and runs fn as the authenticated caller.
func (s *Server) exec(w http.ResponseWriter, r *http.Request, body any, fn func(who common.Address) error) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	if body != nil && !decode(w, r, body) {
		return
	}
	if err := fn(who); err != nil {
		if isBadInput(err) {
			writeBadRequest(w, err)
			return
		}
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, nil)
}

// badInput marks request parsing failures raised inside exec callbacks.
type badInput struct{ err error }

func (b badInput) Error() string { return b.err.Error() }
func (b badInput) Unwrap() error { return b.err }

func isBadInput(err error) bool {
	_, ok := err.(badInput)
	return ok
}

func addressField(field, raw string) (common.Address, error) {
	addr, err := parseAddress(field, raw)
	if err != nil {
		return addr, badInput{err}
	}
	return addr, nil
}

func unknownKind(w http.ResponseWriter, kind string) {
	middleware.WriteError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("unknown kind %q", kind))
}

type bpRequest struct {
	BP uint64 `json:"bp"`
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req bpRequest
	kind := chi.URLParam(r, "kind")
	var set func(common.Address, uint64) error
	switch kind {
	case "mint":
		set = s.ledger.SetMintFeeBP
	case "redeem":
		set = s.ledger.SetRedeemFeeBP
	case "income":
		set = s.ledger.SetIncomeFeeBP
	default:
		unknownKind(w, kind)
		return
	}
	s.exec(w, r, &req, func(who common.Address) error { return set(who, req.BP) })
}

type limitsRequest struct {
	PeriodSeconds uint64 `json:"periodSeconds"`
	MaxAmount     string `json:"maxAmount"`
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	kind := chi.URLParam(r, "kind")
	if kind != "mint" && kind != "redeem" {
		unknownKind(w, kind)
		return
	}
	s.exec(w, r, &req, func(who common.Address) error {
		maxAmount, err := parseAmount("maxAmount", req.MaxAmount)
		if err != nil {
			return badInput{err}
		}
		if kind == "mint" {
			return s.ledger.SetMintLimits(who, req.PeriodSeconds, maxAmount)
		}
		return s.ledger.SetRedeemLimits(who, req.PeriodSeconds, maxAmount)
	})
}

type pausedRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req pausedRequest
	kind := chi.URLParam(r, "kind")
	var set func(common.Address, bool) error
	switch kind {
	case "mint":
		set = s.ledger.SetMintPaused
	case "redeem":
		set = s.ledger.SetRedeemPaused
	default:
		unknownKind(w, kind)
		return
	}
	s.exec(w, r, &req, func(who common.Address) error { return set(who, req.Paused) })
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSetInsuranceFund(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	s.exec(w, r, &req, func(who common.Address) error {
		fund, err := addressField("address", req.Address)
		if err != nil {
			return err
		}
		return s.ledger.SetInsuranceFund(who, fund)
	})
}

func (s *Server) handleSetRewardsAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	s.exec(w, r, &req, func(who common.Address) error {
		addr, err := addressField("address", req.Address)
		if err != nil {
			return err
		}
		return s.ledger.SetRewardsAddress(who, addr)
	})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetFeedEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	s.exec(w, r, &req, func(who common.Address) error { return s.ledger.SetFeedEnabled(who, req.Enabled) })
}

func (s *Server) handleSetOracleEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	s.exec(w, r, &req, func(who common.Address) error { return s.ledger.SetOracleEnabled(who, req.Enabled) })
}

type heartbeatRequest struct {
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleSetOracleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	s.exec(w, r, &req, func(who common.Address) error { return s.ledger.SetOracleHeartbeat(who, req.Seconds) })
}

type assetRequest struct {
	Asset            string `json:"asset"`
	HeartbeatSeconds uint64 `json:"heartbeatSeconds"`
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	s.exec(w, r, &req, func(who common.Address) error {
		asset, err := addressField("asset", req.Asset)
		if err != nil {
			return err
		}
		return s.ledger.AddSupportedAsset(who, asset, req.HeartbeatSeconds)
	})
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	s.exec(w, r, nil, func(who common.Address) error { return s.ledger.RemoveSupportedAsset(who, asset) })
}

func (s *Server) handleAddCustodian(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	s.exec(w, r, &req, func(who common.Address) error {
		custodian, err := addressField("address", req.Address)
		if err != nil {
			return err
		}
		return s.ledger.AddCustodianAddress(who, custodian)
	})
}

func (s *Server) handleRemoveCustodian(w http.ResponseWriter, r *http.Request) {
	custodian, ok := pathAddress(w, r, "custodian")
	if !ok {
		return
	}
	s.exec(w, r, nil, func(who common.Address) error { return s.ledger.RemoveCustodianAddress(who, custodian) })
}

type accountRequest struct {
	Account string `json:"account"`
	Allowed bool   `json:"allowed"`
}

func pathRole(w http.ResponseWriter, r *http.Request) (access.Role, bool) {
	role, err := access.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeBadRequest(w, err)
		return "", false
	}
	return role, true
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	role, ok := pathRole(w, r)
	if !ok {
		return
	}
	var req accountRequest
	s.exec(w, r, &req, func(who common.Address) error {
		account, err := addressField("account", req.Account)
		if err != nil {
			return err
		}
		return s.ledger.GrantRole(who, role, account)
	})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	role, ok := pathRole(w, r)
	if !ok {
		return
	}
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	s.exec(w, r, nil, func(who common.Address) error { return s.ledger.RevokeRole(who, role, account) })
}

func (s *Server) handleSetTrustedSigner(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	s.exec(w, r, &req, func(who common.Address) error {
		signer, err := addressField("address", req.Address)
		if err != nil {
			return err
		}
		return s.ledger.SetTrustedSigner(who, signer)
	})
}

func (s *Server) handleSetWhitelisted(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	s.exec(w, r, &req, func(who common.Address) error {
		account, err := addressField("account", req.Account)
		if err != nil {
			return err
		}
		return s.ledger.SetWhitelisted(who, account, req.Allowed)
	})
}

func (s *Server) handleSetOperator(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	s.exec(w, r, &req, func(who common.Address) error {
		account, err := addressField("account", req.Account)
		if err != nil {
			return err
		}
		return s.ledger.SetOperator(who, account, req.Allowed)
	})
}

type blacklistRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Listed  bool   `json:"listed"`
}

func (s *Server) handleSetBlacklisted(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	s.exec(w, r, &req, func(who common.Address) error {
		token, err := addressField("token", req.Token)
		if err != nil {
			return err
		}
		account, err := addressField("account", req.Account)
		if err != nil {
			return err
		}
		return s.ledger.SetBlacklisted(who, token, account, req.Listed)
	})
}
