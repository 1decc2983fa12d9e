package rpc

import (
	"net/http"
)

type withdrawParams struct {
	Amount string `json:"amount"`
}

type setLockDurationParams struct {
	Seconds int64 `json:"seconds"`
}

type setReservesParams struct {
	ReserveA string `json:"reserveA"`
	ReserveB string `json:"reserveB"`
}

type ackResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleWithdrawAvailable(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params withdrawParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.WithdrawAvailable(caller, amount); err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	s.sale.ObserveWithdrawal("inventory")
	s.observeSupply()
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleWithdrawProceeds(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params withdrawParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.WithdrawProceeds(caller, amount); err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	s.sale.ObserveWithdrawal("proceeds")
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleSetLockDuration(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params setLockDurationParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetLockDuration(caller, params.Seconds); err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

// handleSetReserves updates the manual reserve pair used for quoting. Only
// available when the daemon is configured with a manual price source.
func (s *Server) handleSetReserves(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if caller != s.engine.Admin() {
		writeError(w, http.StatusForbidden, req.ID, codeSaleForbidden, "forbidden", "caller is not the sale admin")
		return
	}
	if s.pair == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeSaleInternal, "internal_error", "manual price source not configured")
		return
	}
	var params setReservesParams
	if err := singleObjectParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	reserveA, err := parsePositiveBigInt(params.ReserveA)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	reserveB, err := parsePositiveBigInt(params.ReserveB)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSaleInvalidParams, "invalid_params", err.Error())
		return
	}
	s.pair.SetReserves(reserveA, reserveB)
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, authErr := s.requireAdmin(r)
	if authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		s.writeSaleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ackResult{OK: true})
}
