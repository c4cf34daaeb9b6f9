package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

func (s *Server) mountTokens(r chi.Router) {
	r.Route("/tokens", func(tr chi.Router) {
		tr.Get("/", s.handleTokens)
		tr.Post("/{token}/approve", s.handleApprove)
		tr.Post("/{token}/transfer", s.handleTransfer)
		tr.Get("/{token}/supply", s.handleTotalSupply)
		tr.Get("/{token}/balances/{account}", s.handleBalanceOf)
		tr.Get("/{token}/allowances/{owner}/{spender}", s.handleAllowance)
	})
}

type tokenJSON struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.Tokens()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	out := make([]tokenJSON, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenJSON{Address: t.Address.Hex(), Symbol: t.Symbol, Decimals: t.Decimals})
	}
	writeOK(w, out)
}

type approveTokenRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	token, ok := pathAddress(w, r, "token")
	if !ok {
		return
	}
	var req approveTokenRequest
	s.exec(w, r, &req, func(who common.Address) error {
		spender, err := addressField("spender", req.Spender)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return badInput{err}
		}
		return s.ledger.Approve(who, token, spender, amount)
	})
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	token, ok := pathAddress(w, r, "token")
	if !ok {
		return
	}
	var req transferRequest
	s.exec(w, r, &req, func(who common.Address) error {
		to, err := addressField("to", req.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return badInput{err}
		}
		return s.ledger.Transfer(who, token, to, amount)
	})
}

func (s *Server) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	token, ok := pathAddress(w, r, "token")
	if !ok {
		return
	}
	supply, err := s.ledger.TotalSupply(token)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(supply))
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	token, ok := pathAddress(w, r, "token")
	if !ok {
		return
	}
	account, ok := pathAddress(w, r, "account")
	if !ok {
		return
	}
	balance, err := s.ledger.BalanceOf(token, account)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(balance))
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	token, ok := pathAddress(w, r, "token")
	if !ok {
		return
	}
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	spender, ok := pathAddress(w, r, "spender")
	if !ok {
		return
	}
	allowance, err := s.ledger.Allowance(token, owner, spender)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeOK(w, newAmountResponse(allowance))
}
