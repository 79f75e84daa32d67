package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"

	"veilfi-wallet/pkg/models"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/swap"
	"veilfi-wallet/pkg/wallet"
)

func (s *Server) handleDepositCheck(w http.ResponseWriter, r *http.Request) {
	if s.deps.Deposits == nil {
		s.writeError(w, r, fmt.Errorf("%w: deposit wallet", swap.ErrNotConfigured))
		return
	}
	found, err := s.deps.Deposits.Check(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if found == nil {
		found = []models.Deposit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"wallet":   s.deps.Deposits.Wallet().String(),
		"count":    len(found),
		"deposits": found,
	})
}

func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["signature"]
	sig, err := solana.SignatureFromBase58(raw)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: signature %q: %v", errBadRequest, raw, err))
		return
	}

	var address *solana.PublicKey
	if a := strings.TrimSpace(r.URL.Query().Get("address")); a != "" {
		key, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w %q: %v", wallet.ErrInvalidAddress, a, err))
			return
		}
		address = &key
	}

	inspection, err := sln.InspectTransaction(r.Context(), s.deps.Node, sig, address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "transaction": inspection})
}
