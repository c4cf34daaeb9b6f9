package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

func (s *Server) mountOracle(r chi.Router) {
	r.Post("/oracle/stable", s.handleUpdateStablePrice)
	r.Post("/oracle/feeds/{asset}", s.handleSetAssetPrice)
	r.Delete("/oracle/feeds/{asset}", s.handleRemoveAssetFeed)
}

type priceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleUpdateStablePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	s.exec(w, r, &req, func(who common.Address) error {
		price, err := parseAmount("price", req.Price)
		if err != nil {
			return badInput{err}
		}
		return s.ledger.UpdateStablePrice(who, price)
	})
}

func (s *Server) handleSetAssetPrice(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	var req priceRequest
	s.exec(w, r, &req, func(who common.Address) error {
		price, err := parseAmount("price", req.Price)
		if err != nil {
			return badInput{err}
		}
		return s.ledger.SetAssetPrice(who, asset, price)
	})
}

func (s *Server) handleRemoveAssetFeed(w http.ResponseWriter, r *http.Request) {
	asset, ok := pathAddress(w, r, "asset")
	if !ok {
		return
	}
	s.exec(w, r, nil, func(who common.Address) error { return s.ledger.RemoveAssetFeed(who, asset) })
}
