package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go/rpc"

	"veilfi-wallet/pkg/jupiter"
	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/pumpfun"
	"veilfi-wallet/pkg/raydium"
	"veilfi-wallet/pkg/session"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
	"veilfi-wallet/pkg/swap"
	"veilfi-wallet/pkg/vault"
	"veilfi-wallet/pkg/wallet"
)

// errBadRequest marks request validation failures found in this package.
var errBadRequest = errors.New("bad request")

type apiError struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	var (
		jupErr *jupiter.APIError
		rayErr *raydium.APIError
	)

	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized, "NO_SESSION"
	case errors.Is(err, errMissingParams), errors.Is(err, swap.ErrMissingParams):
		return http.StatusBadRequest, "MISSING_PARAMS"
	case errors.Is(err, sln.ErrInsufficientFunds):
		return http.StatusBadRequest, "INSUFFICIENT_FUNDS"
	case errors.Is(err, sln.ErrInvalidAmount), errors.Is(err, swap.ErrAmountTooSmall):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, wallet.ErrInvalidAddress):
		return http.StatusBadRequest, "INVALID_ADDRESS"
	case errors.Is(err, keys.ErrEmptyInput), errors.Is(err, keys.ErrInvalidMnemonic),
		errors.Is(err, keys.ErrInvalidLength), errors.Is(err, keys.ErrUnrecognizedFormat),
		errors.Is(err, keys.ErrKeyMismatch):
		return http.StatusBadRequest, "INVALID_KEY"
	case errors.Is(err, sln.ErrTokenAccountAbsent), errors.Is(err, sln.ErrUnknownTokenMint):
		return http.StatusBadRequest, "TOKEN_ACCOUNT_NOT_FOUND"
	case errors.Is(err, swap.ErrPaymentInvalid), errors.Is(err, swap.ErrBuyerMismatch):
		return http.StatusBadRequest, "INVALID_PAYMENT"
	case errors.Is(err, errBadRequest), errors.Is(err, wallet.ErrInvalidUserID),
		errors.Is(err, swap.ErrInvalidRequest), errors.Is(err, swap.ErrUnknownProvider),
		errors.Is(err, vault.ErrPassphrase), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, vault.ErrDecrypt):
		return http.StatusForbidden, "WRONG_PASSPHRASE"
	case errors.Is(err, swap.ErrPaymentNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, rpc.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, swap.ErrPaymentUsed):
		return http.StatusConflict, "PAYMENT_USED"
	case errors.Is(err, swap.ErrOrderNotPending), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "ORDER_NOT_PENDING"
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, swap.ErrNotConfigured), errors.Is(err, vault.ErrNoMasterKey):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED"
	case errors.Is(err, jupiter.ErrNoRoute), errors.Is(err, raydium.ErrNoRoute):
		return http.StatusBadGateway, "NO_ROUTE"
	case errors.Is(err, jupiter.ErrUnavailable), errors.Is(err, pumpfun.ErrTradeRejected),
		errors.Is(err, swap.ErrProviderRejected), errors.As(err, &jupErr), errors.As(err, &rayErr):
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, sln.ErrTransactionFailed):
		return http.StatusBadGateway, "TRANSACTION_FAILED"
	case errors.Is(err, sln.ErrConfirmTimeout):
		return http.StatusGatewayTimeout, "CONFIRM_TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeError renders err. Internal errors are logged and their details
// withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	body := apiError{Error: code}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	} else {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}
