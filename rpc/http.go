package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orphifund/core/events"
	"orphifund/native/matrix"
	"orphifund/native/token"
	"orphifund/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeValidation     = -32040
	codeSystemState    = -32050
	codeResource       = -32060
)

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

// Server exposes the matrix ledger over JSON-RPC plus a websocket event feed
// and Prometheus metrics.
type Server struct {
	engine      *matrix.Engine
	token       *token.Ledger
	broadcaster *events.Broadcaster
	auth        *Authenticator
	owner       common.Address
	logger      *slog.Logger
}

// NewServer wires the RPC surface to the engine and token ledger. The
// authenticator guards the owner-only methods.
func NewServer(engine *matrix.Engine, ledger *token.Ledger, broadcaster *events.Broadcaster, auth *Authenticator, owner common.Address, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:      engine,
		token:       ledger,
		broadcaster: broadcaster,
		auth:        auth,
		owner:       owner,
		logger:      logger,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

// requestID tags every request so log lines can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", nil)
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		return
	}

	started := time.Now()
	outcome := "ok"
	if rpcErr := s.dispatch(w, r, req); rpcErr != nil {
		outcome = "error"
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	metrics := observability.Ledger()
	metrics.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
	metrics.RPCLatency.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())
}

// dispatch routes a request; a non-nil return is written as the error reply.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) *RPCError {
	switch req.Method {
	case "matrix_getUserInfo":
		return s.handleGetUserInfo(w, req)
	case "matrix_getMatrixInfo":
		return s.handleGetMatrixInfo(w, req)
	case "matrix_getPoolBalances":
		return s.handleGetPoolBalances(w, req)
	case "matrix_getPlanParams":
		return s.handleGetPlanParams(w, req)
	case "matrix_register":
		return s.handleRegister(w, req)
	case "matrix_withdraw":
		return s.handleWithdraw(w, req)
	case "token_approve":
		return s.handleTokenApprove(w, req)
	case "token_balanceOf":
		return s.handleTokenBalanceOf(w, req)
	case "matrix_pause":
		return s.adminToggle(w, r, req, s.engine.Pause)
	case "matrix_unpause":
		return s.adminToggle(w, r, req, s.engine.Unpause)
	case "matrix_emergencyLock":
		return s.adminToggle(w, r, req, s.engine.EmergencyLock)
	case "matrix_emergencyUnlock":
		return s.adminToggle(w, r, req, s.engine.EmergencyUnlock)
	case "matrix_distributeGlobalHelpPool":
		return s.handleDistribute(w, r, req, s.engine.DistributeGlobalHelpPool, matrix.PoolGlobalHelp)
	case "matrix_distributeLeaderBonus":
		return s.handleDistribute(w, r, req, s.engine.DistributeLeaderBonus, matrix.PoolLeader)
	case "matrix_emergencyWithdraw":
		return s.handleEmergencyWithdraw(w, r, req)
	case "token_mint":
		return s.handleTokenMint(w, r, req)
	default:
		return &RPCError{Code: codeMethodNotFound, Message: "method not found"}
	}
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

// engineError maps ledger errors onto JSON-RPC error codes so clients get a
// machine-readable failure class.
func engineError(err error) *RPCError {
	switch {
	case errors.Is(err, matrix.ErrUnauthorized), errors.Is(err, token.ErrUnauthorizedMint):
		return &RPCError{Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, matrix.ErrPaused), errors.Is(err, matrix.ErrEmergencyLocked), errors.Is(err, matrix.ErrDistributionNotDue):
		return &RPCError{Code: codeSystemState, Message: err.Error()}
	case errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance), errors.Is(err, matrix.ErrInsufficientReserve):
		return &RPCError{Code: codeResource, Message: err.Error()}
	case errors.Is(err, matrix.ErrAlreadyRegistered),
		errors.Is(err, matrix.ErrSponsorNotFound),
		errors.Is(err, matrix.ErrUserNotFound),
		errors.Is(err, matrix.ErrInvalidTier),
		errors.Is(err, matrix.ErrNothingToWithdraw),
		errors.Is(err, matrix.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidAmount):
		return &RPCError{Code: codeValidation, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}
