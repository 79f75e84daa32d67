package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"

	"veilfi-wallet/pkg/keys"
	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/session"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/wallet"
)

type importRequest struct {
	Input      string `json:"input"`
	Name       string `json:"name"`
	Derivation string `json:"derivation"`
	// BIP-39 passphrase for mnemonics.
	Passphrase string `json:"bip39Passphrase"`
}

func (s *Server) handleAuthImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("input", req.Input); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := keyOptions(req.Derivation, req.Passphrase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	kp, err := keys.Parse(req.Input, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.deps.Sessions.Create(r.Context(), w, kp, strings.TrimSpace(req.Name))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithField("wallet", sess.WalletPubkey).Infof("Imported %s key into session", kp.Format)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":            true,
		"walletAddress": sess.WalletPubkey,
		"type":          kp.Format,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Destroy(r.Context(), w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type sessionUser struct {
	WalletPubkey string `json:"walletPubkey"`
	Name         string `json:"name,omitempty"`
}

func (s *Server) handleSessionMe(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Load(r.Context(), r)
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": nil})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user": sessionUser{WalletPubkey: sess.WalletPubkey, Name: sess.Name},
		})
	}
}

// sessionWallet unseals the signing key of the request's session.
func (s *Server) sessionWallet(r *http.Request) (solana.PrivateKey, error) {
	sess, err := s.deps.Sessions.Load(r.Context(), r)
	if err != nil {
		return nil, err
	}
	return s.deps.Sessions.Keypair(sess)
}

func (s *Server) handleWalletAddress(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Load(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "address": sess.WalletPubkey})
}

type balanceResponse struct {
	OK bool `json:"ok"`
	*models.WalletInfo
	SolUsd float64 `json:"solUsd,omitempty"`
	Source string  `json:"source"`
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		sess, err := s.deps.Sessions.Load(r.Context(), r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		address = sess.WalletPubkey
	}
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w %q: %v", wallet.ErrInvalidAddress, address, err))
		return
	}

	resp := balanceResponse{OK: true, Source: "rpc"}
	if r.URL.Query().Get("source") == "pumpportal" && s.deps.Pumpfun != nil {
		lamports, err := s.deps.Balances.SOL(r.Context(), owner)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.WalletInfo = &models.WalletInfo{
			Address:  owner.String(),
			Lamports: lamports,
			Sol:      sln.LamportsToSOL(lamports),
			Tokens:   s.deps.Pumpfun.GetBalances(r.Context(), owner.String()),
		}
		resp.Source = "pumpportal"
	} else {
		info, err := s.deps.Balances.WalletInfo(r.Context(), owner, false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if s.deps.Jupiter != nil {
			s.deps.Jupiter.PriceBalances(r.Context(), info.Tokens)
		}
		resp.WalletInfo = info
	}
	if resp.Tokens == nil {
		resp.Tokens = []models.TokenBalance{}
	}
	if s.deps.SolPrice != nil {
		resp.SolUsd = s.deps.SolPrice.GetCurrentPrice(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

type transferResponse struct {
	OK bool `json:"ok"`
	*wallet.Transfer
}

type sendRequest struct {
	To     string     `json:"to"`
	Mint   string     `json:"mint"`
	Amount flexString `json:"amount"`
}

func (s *Server) handleSendSOL(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, false)
}

func (s *Server) handleSendSPL(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, true)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, spl bool) {
	var req sendRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields := []string{"to", req.To, "amount", req.Amount.String()}
	if spl {
		fields = append(fields, "mint", req.Mint)
	}
	if err := requireFields(fields...); err != nil {
		s.writeError(w, r, err)
		return
	}
	priv, err := s.sessionWallet(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var out *wallet.Transfer
	if spl {
		out, err = s.deps.Wallets.SendSPL(r.Context(), priv, req.To, req.Mint, req.Amount.String())
	} else {
		out, err = s.deps.Wallets.SendSOL(r.Context(), priv, req.To, req.Amount.String())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{OK: true, Transfer: out})
}

type userRequest struct {
	UserID     string     `json:"userId"`
	Passphrase string     `json:"passphrase"`
	Secret     string     `json:"secret"`
	Derivation string     `json:"derivation"`
	To         string     `json:"to"`
	Mint       string     `json:"mint"`
	Lamports   flexString `json:"amountLamports"`
	BaseUnits  flexString `json:"amountBaseUnits"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("userId", req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, created, err := s.deps.Wallets.CreateUser(r.Context(), req.UserID, req.Passphrase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"userId":  user.ID,
		"pubkey":  user.Pubkey,
		"created": created,
	})
}

func (s *Server) handleUserImport(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("userId", req.UserID, "secret", req.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := keyOptions(req.Derivation, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, format, err := s.deps.Wallets.ImportUser(r.Context(), req.UserID, req.Secret, req.Passphrase, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"userId": user.ID,
		"pubkey": user.Pubkey,
		"type":   format,
	})
}

func (s *Server) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("userId", req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.deps.Wallets.UserBalance(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"userId": req.UserID,
		"pubkey": info.Address,
		"sol":    info.Lamports,
		"tokens": info.Tokens,
	})
}

func (s *Server) handleWithdrawSOL(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("userId", req.UserID, "to", req.To, "amountLamports", req.Lamports.String()); err != nil {
		s.writeError(w, r, err)
		return
	}
	lamports, err := sln.ParseBaseUnits(req.Lamports.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.deps.Wallets.WithdrawSOL(r.Context(), req.UserID, req.To, lamports, req.Passphrase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{OK: true, Transfer: out})
}

func (s *Server) handleWithdrawSPL(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := requireFields("userId", req.UserID, "to", req.To, "mint", req.Mint, "amountBaseUnits", req.BaseUnits.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := sln.ParseBaseUnits(req.BaseUnits.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.deps.Wallets.WithdrawSPL(r.Context(), req.UserID, req.To, req.Mint, amount, req.Passphrase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{OK: true, Transfer: out})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	list, err := s.deps.Wallets.Activities(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "activities": list})
}

func keyOptions(derivation, passphrase string) (keys.Options, error) {
	d, err := keys.ParseDerivation(derivation)
	if err != nil {
		return keys.Options{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return keys.Options{Derivation: d, Passphrase: passphrase}, nil
}
