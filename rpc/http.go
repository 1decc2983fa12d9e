package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tokensale/native/reserve"
	"tokensale/native/sale"
	"tokensale/observability/metrics"
	"tokensale/storage"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

const (
	codeSaleInvalidParams = -32041
	codeSaleNotFound      = -32042
	codeSaleForbidden     = -32043
	codeSaleConflict      = -32044
	codeSaleInternal      = -32045
)

// ServerConfig carries the operational knobs for the JSON-RPC surface.
type ServerConfig struct {
	// JWTSecret signs admin bearer tokens. An empty secret rejects every
	// admin call.
	JWTSecret string
	// RatePerSecond and RateBurst bound request throughput per client
	// source address.
	RatePerSecond float64
	RateBurst     int
	// MaxRequestBytes caps the accepted request body size.
	MaxRequestBytes int64
}

// Server exposes the sale engine over JSON-RPC 2.0.
type Server struct {
	engine  *sale.Engine
	journal *storage.Journal
	pair    *reserve.ManualPair
	cfg     ServerConfig
	logger  *slog.Logger
	sale    *metrics.SaleMetrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the RPC surface over an engine. The journal and manual pair
// are optional; methods depending on them report an internal error when
// absent.
func NewServer(engine *sale.Engine, journal *storage.Journal, pair *reserve.ManualPair, cfg ServerConfig, logger *slog.Logger) *Server {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 100
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:   engine,
		journal:  journal,
		pair:     pair,
		cfg:      cfg,
		logger:   logger,
		sale:     metrics.Sale(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Router assembles the HTTP routes: the JSON-RPC endpoint plus health and
// metrics probes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(clientSource(r)) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "sale_quote":
		s.handleQuote(w, r, req)
	case "sale_purchase":
		s.handlePurchase(w, r, req)
	case "sale_claimAll":
		s.handleClaimAll(w, r, req)
	case "sale_claimSelected":
		s.handleClaimSelected(w, r, req)
	case "sale_getUserLocks":
		s.handleGetUserLocks(w, r, req)
	case "sale_totalLocked":
		s.handleTotalLocked(w, r, req)
	case "sale_availableForWithdrawal":
		s.handleAvailableForWithdrawal(w, r, req)
	case "sale_status":
		s.handleStatus(w, r, req)
	case "sale_listEvents":
		s.handleListEvents(w, r, req)
	case "sale_withdrawAvailable":
		s.handleWithdrawAvailable(w, r, req)
	case "sale_withdrawProceeds":
		s.handleWithdrawProceeds(w, r, req)
	case "sale_setLockDuration":
		s.handleSetLockDuration(w, r, req)
	case "sale_setReserves":
		s.handleSetReserves(w, r, req)
	case "sale_pause":
		s.handlePause(w, r, req)
	case "sale_unpause":
		s.handleUnpause(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.RateBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
