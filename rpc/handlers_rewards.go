package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountRewards(r chi.Router) {
	r.Post("/rewards/claim", s.handleClaimRewards)
	r.Post("/rewards/{id}/finalize", s.handleFinalizeRewards)
	r.Post("/rewards/{id}/withdraw", s.handleWithdrawExpiredRewards)
}

type finalizeRequest struct {
	ClaimDurationSeconds uint64 `json:"claimDurationSeconds"`
}

func (s *Server) handleFinalizeRewards(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathRewardID(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ledger.FinalizeRewards(who, id, req.ClaimDurationSeconds); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	reward, err := s.ledger.Reward(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newRewardJSON(reward))
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req SignedClaim
	if !decode(w, r, &req) {
		return
	}
	claim, err := req.Claim.ToClaimRequest()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	total, err := s.ledger.ClaimRewards(who, claim, req.Signature)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(total))
}

type withdrawExpiredRequest struct {
	To string `json:"to"`
}

func (s *Server) handleWithdrawExpiredRewards(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathRewardID(w, r)
	if !ok {
		return
	}
	var req withdrawExpiredRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := s.ledger.WithdrawExpiredRewards(who, id, to)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(amount))
}
