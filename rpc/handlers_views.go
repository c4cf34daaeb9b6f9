package rpc

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stableledger/core/types"
	"stableledger/native/minting"
	"stableledger/native/rewards"
	"stableledger/rpc/middleware"
	"stableledger/storage/eventlog"
)

func (s *Server) mountViews(r chi.Router) {
	r.Get("/info", s.handleInfo)
	r.Get("/settings", s.handleSettings)
	r.Get("/limits", s.handleLimits)
	r.Get("/assets", s.handleSupportedAssets)
	r.Get("/assets/{asset}", s.handleFunds)
	r.Get("/rewards/{id}", s.handleReward)
	r.Get("/rewards/{id}/claimed/{account}", s.handleClaimed)
	r.Get("/roles/{role}/{account}", s.handleHasRole)
	r.Get("/whitelist/{account}", s.handleIsWhitelisted)
	r.Get("/events", s.handleEvents)
}

type domainJSON struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type infoResponse struct {
	ChainID       string     `json:"chainId"`
	Ledger        string     `json:"ledger"`
	StableToken   string     `json:"stableToken"`
	TrustedSigner string     `json:"trustedSigner"`
	RewardsVault  string     `json:"rewardsVault"`
	OrderDomain   domainJSON `json:"orderDomain"`
	RewardsDomain domainJSON `json:"rewardsDomain"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	signer, err := s.ledger.TrustedSigner()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	vault, err := s.ledger.RewardsVault()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	orders := s.ledger.OrderDomain()
	claims := s.ledger.RewardsDomain()
	writeOK(w, infoResponse{
		ChainID:       s.ledger.ChainID().String(),
		Ledger:        s.ledger.Address().Hex(),
		StableToken:   s.ledger.StableToken().Hex(),
		TrustedSigner: signer.Hex(),
		RewardsVault:  vault.Hex(),
		OrderDomain: domainJSON{
			Name:              minting.DomainName,
			Version:           minting.DomainVersion,
			ChainID:           orders.ChainID.String(),
			VerifyingContract: orders.VerifyingContract.Hex(),
		},
		RewardsDomain: domainJSON{
			Name:              rewards.DomainName,
			Version:           rewards.DomainVersion,
			ChainID:           claims.ChainID.String(),
			VerifyingContract: claims.Distributor.Hex(),
		},
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.Settings()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newSettingsJSON(settings))
}

type limitsResponse struct {
	Mint   windowJSON `json:"mint"`
	Redeem windowJSON `json:"redeem"`
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.ledger.Limits()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, limitsResponse{Mint: newWindowJSON(limits.Mint), Redeem: newWindowJSON(limits.Redeem)})
}

func (s *Server) handleSupportedAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.ledger.SupportedAssets()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	out := make([]fundsJSON, 0, len(assets))
	for _, asset := range assets {
		funds, err := s.ledger.Funds(asset)
		if err != nil {
			s.writeLedgerError(w, r, err)
			return
		}
		out = append(out, newFundsJSON(funds))
	}
	writeOK(w, out)
}

func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	funds, err := s.ledger.Funds(asset)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newFundsJSON(funds))
}

func (s *Server) handleRedeemRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.ledger.RedeemRequests()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	out := make([]redeemRequestJSON, 0, len(reqs))
	for _, req := range reqs {
		if status != "" && req.Status.String() != status {
			continue
		}
		out = append(out, newRedeemRequestJSON(req))
	}
	writeOK(w, out)
}

func (s *Server) handleRedeemLocked(w http.ResponseWriter, r *http.Request) {
	locked, err := s.ledger.TotalRedeemLockedStable()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(locked))
}

func (s *Server) handleRedeemRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.ledger.RedeemRequest(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, minting.ErrInvalidRedeemRequest) {
			middleware.WriteError(w, http.StatusNotFound, "InvalidRedeemRequest", err.Error())
			return
		}
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newRedeemRequestJSON(req))
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRewardID(w, r)
	if !ok {
		return
	}
	reward, err := s.ledger.Reward(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newRewardJSON(reward))
}

type flagResponse struct {
	Value bool `json:"value"`
}

func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRewardID(w, r)
	if !ok {
		return
	}
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	claimed, err := s.ledger.Claimed(id, account)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, flagResponse{Value: claimed})
}

func (s *Server) handleHasRole(w http.ResponseWriter, r *http.Request) {
	role, ok := pathRole(w, r)
	if !ok {
		return
	}
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	has, err := s.ledger.HasRole(role, account)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, flagResponse{Value: has})
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, r *http.Request) {
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	listed, err := s.ledger.IsWhitelisted(account)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, flagResponse{Value: listed})
}

type eventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "NotImplemented", "event journal disabled")
		return
	}
	q := r.URL.Query()
	filter := eventlog.Filter{Type: q.Get("type")}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		filter.After = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, errInvalidLimit)
			return
		}
		filter.Limit = limit
	}
	evts, err := s.events.Query(r.Context(), filter)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, toEventJSON(evts))
}

func toEventJSON(evts []*types.Event) []eventJSON {
	out := make([]eventJSON, 0, len(evts))
	for _, evt := range evts {
		out = append(out, eventJSON{
			Sequence:   evt.Sequence,
			Type:       evt.Type,
			Timestamp:  evt.Timestamp,
			Attributes: evt.Attributes,
		})
	}
	return out
}
