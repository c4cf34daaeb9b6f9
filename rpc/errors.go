package rpc

import (
	"errors"
	"log/slog"
	"net/http"

	"stableledger/core"
	"stableledger/rpc/middleware"
)

const codeBadRequest = "BadRequest"

var (
	errCallerRequired = errors.New("authenticated caller required")
	errInvalidLimit   = errors.New("limit must be a non-negative integer")
)

var codeStatus = map[string]int{
	"InvalidOrder":            http.StatusBadRequest,
	"InvalidAmount":           http.StatusBadRequest,
	"InvalidParams":           http.StatusBadRequest,
	"ZeroAddress":             http.StatusBadRequest,
	"InvalidPercentBP":        http.StatusBadRequest,
	"InvalidAssetAddress":     http.StatusBadRequest,
	"InvalidCustodianAddress": http.StatusBadRequest,
	"UnknownRole":             http.StatusBadRequest,
	"InvalidPrice":            http.StatusBadRequest,

	"Unauthorized":     http.StatusForbidden,
	"NotWhitelisted":   http.StatusForbidden,
	"InvalidSender":    http.StatusForbidden,
	"InvalidClaimer":   http.StatusForbidden,
	"InvalidSignature": http.StatusForbidden,
	"Blacklisted":      http.StatusForbidden,

	"UnknownToken":   http.StatusNotFound,
	"UnknownRewards": http.StatusNotFound,
	"NoFeed":         http.StatusNotFound,
	"NoPrice":        http.StatusNotFound,

	"InvalidNonce":          http.StatusConflict,
	"InvalidRedeemRequest":  http.StatusConflict,
	"NotEnoughFunds":        http.StatusConflict,
	"InsufficientBalance":   http.StatusConflict,
	"InsufficientAllowance": http.StatusConflict,
	"ZeroRewards":           http.StatusConflict,
	"TokenExists":           http.StatusConflict,
	"LimitReached":          http.StatusConflict,
	"MintPaused":            http.StatusConflict,
	"RedeemPaused":          http.StatusConflict,
	"Paused":                http.StatusConflict,

	"SignatureExpired": http.StatusUnprocessableEntity,
	"PriceSlippage":    http.StatusUnprocessableEntity,
	"StalePrice":       http.StatusUnprocessableEntity,
}

// statusFor maps a ledger error code to an HTTP status.
func statusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := core.ErrorCode(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFrom(r.Context())),
			slog.Any("error", err))
		message = "internal error"
	}
	middleware.WriteError(w, status, code, message)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	middleware.WriteError(w, http.StatusBadRequest, codeBadRequest, err.Error())
}
