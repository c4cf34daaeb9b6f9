package rpc

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountFunds(r chi.Router) {
	r.Post("/custody/transfer", s.handleTransferToCustody)
	r.Post("/custody/force", s.handleForceTransferToCustody)
	r.Post("/funds/freeze", s.handleFreeze)
	r.Post("/funds/unfreeze", s.handleUnfreeze)
}

type custodyRequest struct {
	Custodian string `json:"custodian"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount,omitempty"`
}

func (s *Server) handleTransferToCustody(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req custodyRequest
	if !decode(w, r, &req) {
		return
	}
	custodian, err := parseAddress("custodian", req.Custodian)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.ledger.TransferToCustody(who, custodian, asset, amount); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(amount))
}

func (s *Server) handleForceTransferToCustody(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req custodyRequest
	if !decode(w, r, &req) {
		return
	}
	custodian, err := parseAddress("custodian", req.Custodian)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	moved, err := s.ledger.ForceTransferToCustody(who, custodian, asset)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(moved))
}

type freezeRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	s.freezeOrUnfreeze(w, r, true)
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	s.freezeOrUnfreeze(w, r, false)
}

func (s *Server) freezeOrUnfreeze(w http.ResponseWriter, r *http.Request, freeze bool) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req freezeRequest
	if !decode(w, r, &req) {
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if freeze {
		err = s.ledger.FreezeFunds(who, asset, amount)
	} else {
		err = s.ledger.UnfreezeFunds(who, asset, amount)
	}
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	funds, err := s.ledger.Funds(asset)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newFundsJSON(funds))
}
