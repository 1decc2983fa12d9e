package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"tokensale/crypto"
	"tokensale/native/sale"
	"tokensale/storage"
)

type quoteParams struct {
	PayAmount string `json:"payAmount"`
}

type quoteResult struct {
	PayAmount  string `json:"payAmount"`
	SaleAmount string `json:"saleAmount"`
}

type purchaseParams struct {
	Buyer         string `json:"buyer"`
	PayAmount     string `json:"payAmount"`
	MinSaleAmount string `json:"minSaleAmount,omitempty"`
}

type purchaseResult struct {
	PayAmount   string `json:"payAmount"`
	SaleAmount  string `json:"saleAmount"`
	ReleaseTime int64  `json:"releaseTime"`
	LockIndex   int    `json:"lockIndex"`
}

type claimParams struct {
	Claimant string `json:"claimant"`
	Indices  []int  `json:"indices,omitempty"`
}

type claimResult struct {
	Claimed string `json:"claimed"`
}

type userLocksParams struct {
	Account string `json:"account"`
}

// userLocksResult reports the lock history as parallel slices indexed by lock
// position.
type userLocksResult struct {
	Account      string   `json:"account"`
	Amounts      []string `json:"amounts"`
	ReleaseTimes []int64  `json:"releaseTimes"`
	Claimed      []bool   `json:"claimed"`
}

type statusResult struct {
	Paused              bool   `json:"paused"`
	LockDurationSeconds int64  `json:"lockDurationSeconds"`
	Admin               string `json:"admin"`
	Vault               string `json:"vault"`
	TotalLocked         string `json:"totalLocked"`
}

type listEventsParams struct {
	Actor string `json:"actor,omitempty"`
}

func parseBech32Address(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseOptionalBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func singleObjectParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeSaleError translates engine sentinel errors into RPC error codes.
func (s *Server) writeSaleError(w http.ResponseWriter, id interface{}, err error) {
	s.sale.ObserveRejection(rejectionReason(err))
	switch {
	case errors.Is(err, sale.ErrInvalidAmount), errors.Is(err, sale.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, id, codeSaleInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, sale.ErrNoLocks):
		writeError(w, http.StatusNotFound, id, codeSaleNotFound, "not_found", err.Error())
	case errors.Is(err, sale.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeSaleForbidden, "forbidden", err.Error())
	case errors.Is(err, sale.ErrPaused),
		errors.Is(err, sale.ErrSlippageExceeded),
		errors.Is(err, sale.ErrInsufficientInventory),
		errors.Is(err, sale.ErrNothingUnlocked),
		errors.Is(err, sale.ErrNothingToClaim),
		errors.Is(err, sale.ErrAlreadyClaimed),
		errors.Is(err, sale.ErrNotYetUnlocked),
		errors.Is(err, sale.ErrExceedsAvailable),
		errors.Is(err, sale.ErrExceedsBalance),
		errors.Is(err, sale.ErrReentrancyBlocked):
		writeError(w, http.StatusConflict, id, codeSaleConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeSaleInternal, "internal_error", err.Error())
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, sale.ErrPaused):
		return "paused"
	case errors.Is(err, sale.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, sale.ErrInsufficientInventory):
		return "inventory"
	case errors.Is(err, sale.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, sale.ErrTransferFailed):
		return "transfer"
	default:
		return "other"
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params quoteParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	payAmount, err := parsePositiveBigInt(params.PayAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	saleAmount, err := s.engine.Quote(payAmount)
	if err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, quoteResult{PayAmount: payAmount.String(), SaleAmount: saleAmount.String()})
}

func (s *Server) handlePurchase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params purchaseParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	payAmount, err := parsePositiveBigInt(params.PayAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	minOut, err := parseOptionalBigInt(params.MinSaleAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.engine.Purchase(buyer, payAmount, minOut)
	if err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	s.sale.ObservePurchase(s.engine.PayAsset())
	s.observeSupply()
	writeResult(w, req.ID, purchaseResult{
		PayAmount:   receipt.PayAmount.String(),
		SaleAmount:  receipt.SaleAmount.String(),
		ReleaseTime: receipt.ReleaseTime,
		LockIndex:   receipt.LockIndex,
	})
}

func (s *Server) handleClaimAll(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	claimant, err := parseBech32Address(params.Claimant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	total, err := s.engine.ClaimAll(claimant)
	if err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	s.sale.ObserveClaim()
	s.observeSupply()
	writeResult(w, req.ID, claimResult{Claimed: total.String()})
}

func (s *Server) handleClaimSelected(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	claimant, err := parseBech32Address(params.Claimant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	total, err := s.engine.ClaimSelected(claimant, params.Indices)
	if err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	s.sale.ObserveClaim()
	s.observeSupply()
	writeResult(w, req.ID, claimResult{Claimed: total.String()})
}

func (s *Server) handleGetUserLocks(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params userLocksParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseBech32Address(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	locks := s.engine.UserLocks(account)
	result := userLocksResult{
		Account:      strings.TrimSpace(params.Account),
		Amounts:      make([]string, len(locks)),
		ReleaseTimes: make([]int64, len(locks)),
		Claimed:      make([]bool, len(locks)),
	}
	for i, lock := range locks {
		result.Amounts[i] = lock.Amount.String()
		result.ReleaseTimes[i] = lock.ReleaseTime
		result.Claimed[i] = lock.Claimed
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTotalLocked(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]string{"totalLocked": s.engine.TotalLocked().String()})
}

func (s *Server) handleAvailableForWithdrawal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	available, err := s.engine.AvailableForWithdrawal()
	if err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"available": available.String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	admin := s.engine.Admin()
	vault := s.engine.Vault()
	writeResult(w, req.ID, statusResult{
		Paused:              s.engine.Paused(),
		LockDurationSeconds: s.engine.LockDuration(),
		Admin:               crypto.NewAddress(crypto.SalePrefix, admin[:]).String(),
		Vault:               crypto.NewAddress(crypto.SalePrefix, vault[:]).String(),
		TotalLocked:         s.engine.TotalLocked().String(),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.journal == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSaleInternal, "internal_error", "audit journal not configured")
		return
	}
	var params listEventsParams
	if len(req.Params) > 0 {
		if err := singleObjectParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	var (
		entries []storage.JournalEntry
		err     error
	)
	if actor := strings.TrimSpace(params.Actor); actor != "" {
		entries, err = s.journal.EntriesByActor(actor)
	} else {
		entries, err = s.journal.Entries()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSaleInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, entries)
}

func (s *Server) observeSupply() {
	locked, _ := new(big.Float).SetInt(s.engine.TotalLocked()).Float64()
	s.sale.SetTotalLocked(locked)
	if available, err := s.engine.AvailableForWithdrawal(); err == nil {
		supply, _ := new(big.Float).SetInt(available).Float64()
		s.sale.SetAvailableSupply(supply)
	}
}
