package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"veilfi-wallet/pkg/jupiter"
	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/raydium"
	"veilfi-wallet/pkg/session"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
	"veilfi-wallet/pkg/swap"
	"veilfi-wallet/pkg/vault"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrNoSession, http.StatusUnauthorized, "NO_SESSION"},
		{fmt.Errorf("load: %w", session.ErrNotFound), http.StatusUnauthorized, "NO_SESSION"},
		{fmt.Errorf("%w: to", errMissingParams), http.StatusBadRequest, "MISSING_PARAMS"},
		{fmt.Errorf("need 5000: %w", sln.ErrInsufficientFunds), http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
		{keys.ErrInvalidMnemonic, http.StatusBadRequest, "INVALID_KEY"},
		{vault.ErrDecrypt, http.StatusForbidden, "WRONG_PASSPHRASE"},
		{fmt.Errorf("user x: %w", storage.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{swap.ErrPaymentUsed, http.StatusConflict, "PAYMENT_USED"},
		{swap.ErrNotConfigured, http.StatusServiceUnavailable, "NOT_CONFIGURED"},
		{&jupiter.APIError{Status: 500, Body: "x"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{fmt.Errorf("compute: %w", &raydium.APIError{Status: 400, Msg: "x"}), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{raydium.ErrNoRoute, http.StatusBadGateway, "NO_ROUTE"},
		{sln.ErrConfirmTimeout, http.StatusGatewayTimeout, "CONFIRM_TIMEOUT"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
