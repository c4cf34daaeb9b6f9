package rpc

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"stableledger/core"
	"stableledger/native/minting"
	"stableledger/rpc/middleware"
)

func (s *Server) mountOrders(r chi.Router) {
	r.Post("/mint", s.handleMint)
	r.Post("/orders/verify", s.handleVerifyOrder)
	r.Post("/income", s.handleDepositIncome)
	r.Route("/redeem", func(rr chi.Router) {
		rr.Get("/", s.handleRedeemRequests)
		rr.Get("/locked", s.handleRedeemLocked)
		rr.Get("/{id}", s.handleRedeemRequest)
		rr.Post("/request", s.handleRequestRedeem)
		rr.Post("/{id}/approve", s.handleApproveRedeem)
		rr.Post("/{id}/reject", s.handleRejectRedeem)
		rr.Post("/{id}/withdraw", s.handleWithdrawRedeem)
	})
}

func decodeSignedOrder(w http.ResponseWriter, r *http.Request) (minting.Order, []byte, bool) {
	var req SignedOrder
	if !decode(w, r, &req) {
		return minting.Order{}, nil, false
	}
	order, err := req.Order.ToOrder()
	if err != nil {
		writeBadRequest(w, err)
		return minting.Order{}, nil, false
	}
	return order, req.Signature, true
}

type mintResponse struct {
	Minted string `json:"minted"`
	Fee    string `json:"fee"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	order, sig, ok := decodeSignedOrder(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.Mint(who, order, sig)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, mintResponse{Minted: amountString(res.Minted), Fee: amountString(res.Fee)})
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleVerifyOrder reports whether an order would pass authentication
// without consuming its nonce.
func (s *Server) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	order, sig, ok := decodeSignedOrder(w, r)
	if !ok {
		return
	}
	if err := s.ledger.VerifyOrder(order, sig); err != nil {
		writeOK(w, verifyResponse{Code: core.ErrorCode(err), Error: err.Error()})
		return
	}
	writeOK(w, verifyResponse{Valid: true})
}

func (s *Server) handleRequestRedeem(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	order, sig, ok := decodeSignedOrder(w, r)
	if !ok {
		return
	}
	req, err := s.ledger.RequestRedeem(who, order, sig)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, newRedeemRequestJSON(req))
}

type approveRequest struct {
	Amount string `json:"amount"`
}

type decisionResponse struct {
	Decision   string `json:"decision"`
	Collateral string `json:"collateral,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) handleApproveRedeem(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	decision, err := s.ledger.ApproveRedeemRequest(who, chi.URLParam(r, "id"), amount)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if decision.Approved() {
		writeOK(w, decisionResponse{Decision: "approved", Collateral: amountString(decision.Collateral)})
		return
	}
	writeOK(w, decisionResponse{Decision: "rejected", Reason: decision.Reason})
}

func (s *Server) handleRejectRedeem(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.RejectRedeemRequest(who, chi.URLParam(r, "id")); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, decisionResponse{Decision: "rejected", Reason: minting.ReasonManager})
}

func (s *Server) handleWithdrawRedeem(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.WithdrawRedeemRequest(who, chi.URLParam(r, "id")); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, decisionResponse{Decision: core.DecisionWithdraw})
}

type incomeResponse struct {
	SnapshotID string `json:"snapshotId"`
	Rewards    string `json:"rewards"`
	Fee        string `json:"fee"`
}

func (s *Server) handleDepositIncome(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	order, sig, ok := decodeSignedOrder(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.DepositIncome(who, order, sig)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, incomeResponse{
		SnapshotID: hexutil.Encode(res.SnapshotID[:]),
		Rewards:    amountString(res.Rewards),
		Fee:        amountString(res.Fee),
	})
}

type amountResponse struct {
	Amount string `json:"amount"`
}

func newAmountResponse(v *big.Int) amountResponse {
	return amountResponse{Amount: amountString(v)}
}
