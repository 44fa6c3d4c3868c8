package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"SynthLedger/internal/engine"
	"SynthLedger/internal/ledger"
	"SynthLedger/internal/observability"
	"SynthLedger/internal/query"
	"SynthLedger/internal/token"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// Server exposes the engine's operations and queries over HTTP/JSON.
// Mutations go straight to the engine; historical reads go to the
// projection-backed query service.
type Server struct {
	engine  *engine.Engine
	queries *query.QueryService
	bank    *token.Bank
	health  *observability.HealthChecker
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewServer(
	eng *engine.Engine,
	queries *query.QueryService,
	bank *token.Bank,
	health *observability.HealthChecker,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		engine:  eng,
		queries: queries,
		bank:    bank,
		health:  health,
		log:     log,
		metrics: metrics,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collateral/deposit", s.instrument("deposit", s.handleDeposit))
		r.Post("/collateral/deposit-and-mint", s.instrument("deposit_and_mint", s.handleDepositAndMint))
		r.Post("/collateral/redeem", s.instrument("redeem", s.handleRedeem))
		r.Post("/collateral/redeem-for-synthetic", s.instrument("redeem_for_synthetic", s.handleRedeemForSynthetic))
		r.Post("/synthetic/mint", s.instrument("mint", s.handleMint))
		r.Post("/synthetic/burn", s.instrument("burn", s.handleBurn))
		r.Post("/liquidations", s.instrument("liquidate", s.handleLiquidate))
		r.Post("/bank/fund", s.instrument("fund", s.handleFund))

		r.Get("/accounts", s.instrument("list_accounts", s.handleListAccounts))
		r.Get("/accounts/{user}", s.instrument("get_account", s.handleGetAccount))
		r.Get("/accounts/{user}/health", s.instrument("account_health", s.handleAccountHealth))
		r.Get("/accounts/{user}/collateral/{asset}", s.instrument("collateral_balance", s.handleCollateralBalance))
		r.Get("/accounts/{user}/events", s.instrument("account_events", s.handleUserEvents))

		r.Get("/assets/{asset}/usd-value", s.instrument("usd_value", s.handleUsdValue))
		r.Get("/assets/{asset}/token-amount", s.instrument("token_amount", s.handleTokenAmount))

		r.Get("/events", s.instrument("events", s.handleEvents))
		r.Get("/params", s.instrument("params", s.handleParams))
	})

	return r
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(endpoint string, h func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := h(w, r)
		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// --- Mutations ---

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) int {
	var req depositRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, qty, status := s.parseUserAmount(w, req.UserID, req.Quantity)
	if status != 0 {
		return status
	}
	if err := s.engine.DepositCollateral(r.Context(), user, req.Asset, qty); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) int {
	var req mintRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, amount, status := s.parseUserAmount(w, req.UserID, req.Amount)
	if status != 0 {
		return status
	}
	if err := s.engine.MintSynthetic(r.Context(), user, amount); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) int {
	var req depositAndMintRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, qty, status := s.parseUserAmount(w, req.UserID, req.Quantity)
	if status != 0 {
		return status
	}
	mintAmount, err := uint256.FromDecimal(req.MintAmount)
	if err != nil {
		return s.writeBadRequest(w, "invalid mint_amount")
	}
	if err := s.engine.DepositCollateralAndMint(r.Context(), user, req.Asset, qty, mintAmount); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) int {
	var req redeemRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, qty, status := s.parseUserAmount(w, req.UserID, req.Quantity)
	if status != 0 {
		return status
	}
	if err := s.engine.RedeemCollateral(r.Context(), user, req.Asset, qty); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) int {
	var req burnRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, amount, status := s.parseUserAmount(w, req.UserID, req.Amount)
	if status != 0 {
		return status
	}
	if err := s.engine.BurnSynthetic(r.Context(), user, amount); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleRedeemForSynthetic(w http.ResponseWriter, r *http.Request) int {
	var req redeemForSyntheticRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, qty, status := s.parseUserAmount(w, req.UserID, req.Quantity)
	if status != 0 {
		return status
	}
	burnAmount, err := uint256.FromDecimal(req.BurnAmount)
	if err != nil {
		return s.writeBadRequest(w, "invalid burn_amount")
	}
	if err := s.engine.RedeemCollateralForSynthetic(r.Context(), user, req.Asset, qty, burnAmount); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) int {
	var req liquidateRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	liquidator, err := uuid.Parse(req.LiquidatorID)
	if err != nil {
		return s.writeBadRequest(w, "invalid liquidator_id")
	}
	target, err := uuid.Parse(req.TargetID)
	if err != nil {
		return s.writeBadRequest(w, "invalid target_id")
	}
	debtToCover, err := uint256.FromDecimal(req.DebtToCover)
	if err != nil {
		return s.writeBadRequest(w, "invalid debt_to_cover")
	}
	if err := s.engine.Liquidate(r.Context(), liquidator, target, req.Asset, debtToCover); err != nil {
		return s.writeError(w, err)
	}
	return s.writeApplied(w)
}

// handleFund credits a user's bank balance. This is the operator on-ramp
// used to seed balances in environments without a real custody bridge.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) int {
	var req fundRequest
	if status := s.decode(w, r, &req); status != 0 {
		return status
	}
	user, qty, status := s.parseUserAmount(w, req.UserID, req.Quantity)
	if status != 0 {
		return status
	}
	s.bank.Fund(user, req.Asset, qty)
	return s.writeApplied(w)
}

// --- Queries ---

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) int {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		return s.writeBadRequest(w, "invalid user id")
	}
	resp, err := s.queries.GetAccount(r.Context(), user)
	if err != nil {
		return s.writeError(w, err)
	}
	return s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) int {
	limit := queryInt(r, "limit", 100)
	var afterUser *uuid.UUID
	if after := r.URL.Query().Get("after"); after != "" {
		id, err := uuid.Parse(after)
		if err != nil {
			return s.writeBadRequest(w, "invalid after cursor")
		}
		afterUser = &id
	}
	accounts, err := s.queries.ListAccounts(r.Context(), limit, afterUser)
	if err != nil {
		return s.writeError(w, err)
	}
	if accounts == nil {
		accounts = []query.AccountResponse{}
	}
	return s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleAccountHealth(w http.ResponseWriter, r *http.Request) int {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		return s.writeBadRequest(w, "invalid user id")
	}
	debt, collateralValue, err := s.engine.AccountInformation(user)
	if err != nil {
		return s.writeError(w, err)
	}
	hf, err := s.engine.HealthFactor(user)
	if err != nil {
		return s.writeError(w, err)
	}
	return s.writeJSON(w, http.StatusOK, accountHealthResponse{
		UserID:          user.String(),
		Debt:            debt.Dec(),
		CollateralValue: collateralValue.Dec(),
		HealthFactor:    hf.Dec(),
	})
}

func (s *Server) handleCollateralBalance(w http.ResponseWriter, r *http.Request) int {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		return s.writeBadRequest(w, "invalid user id")
	}
	asset := chi.URLParam(r, "asset")
	qty := s.engine.CollateralBalance(user, asset)
	return s.writeJSON(w, http.StatusOK, collateralBalanceResponse{
		UserID:   user.String(),
		Asset:    asset,
		Quantity: qty.Dec(),
	})
}

func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) int {
	user, err := uuid.Parse(chi.URLParam(r, "user"))
	if err != nil {
		return s.writeBadRequest(w, "invalid user id")
	}
	limit := queryInt(r, "limit", 100)
	var before *int64
	if b := r.URL.Query().Get("before"); b != "" {
		seq, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return s.writeBadRequest(w, "invalid before cursor")
		}
		before = &seq
	}
	events, err := s.queries.GetUserEvents(r.Context(), user, limit, before)
	if err != nil {
		return s.writeError(w, err)
	}
	if events == nil {
		events = []query.EventResponse{}
	}
	return s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleUsdValue(w http.ResponseWriter, r *http.Request) int {
	asset := chi.URLParam(r, "asset")
	qty, err := uint256.FromDecimal(r.URL.Query().Get("quantity"))
	if err != nil {
		return s.writeBadRequest(w, "invalid quantity")
	}
	value, err := s.engine.UsdValue(asset, qty)
	if err != nil {
		return s.writeError(w, err)
	}
	return s.writeJSON(w, http.StatusOK, usdValueResponse{
		Asset:    asset,
		Quantity: qty.Dec(),
		UsdValue: value.Dec(),
	})
}

func (s *Server) handleTokenAmount(w http.ResponseWriter, r *http.Request) int {
	asset := chi.URLParam(r, "asset")
	usdValue, err := uint256.FromDecimal(r.URL.Query().Get("usd_value"))
	if err != nil {
		return s.writeBadRequest(w, "invalid usd_value")
	}
	qty, err := s.engine.TokenAmountFromUsd(asset, usdValue)
	if err != nil {
		return s.writeError(w, err)
	}
	return s.writeJSON(w, http.StatusOK, tokenAmountResponse{
		Asset:    asset,
		UsdValue: usdValue.Dec(),
		Quantity: qty.Dec(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) int {
	from := int64(queryInt(r, "from", 0))
	limit := queryInt(r, "limit", 100)
	events, err := s.queries.GetEvents(r.Context(), from, limit)
	if err != nil {
		return s.writeError(w, err)
	}
	if events == nil {
		events = []query.EventResponse{}
	}
	return s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) int {
	p := s.engine.Params()
	return s.writeJSON(w, http.StatusOK, paramsResponse{
		LiquidationThreshold: p.LiquidationThreshold,
		LiquidationPrecision: p.LiquidationPrecision,
		LiquidationBonus:     p.LiquidationBonus,
		MinHealthFactor:      p.MinHealthFactor.Dec(),
		CollateralAssets:     s.engine.CollateralAssets(),
	})
}

// --- helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) int {
	body := http.MaxBytesReader(w, r.Body, requestBodyLimit)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return s.writeBadRequest(w, "invalid request body")
	}
	return 0
}

func (s *Server) parseUserAmount(w http.ResponseWriter, userStr, amountStr string) (uuid.UUID, *uint256.Int, int) {
	user, err := uuid.Parse(userStr)
	if err != nil {
		return uuid.Nil, nil, s.writeBadRequest(w, "invalid user_id")
	}
	amount, err := uint256.FromDecimal(amountStr)
	if err != nil {
		return uuid.Nil, nil, s.writeBadRequest(w, "invalid amount")
	}
	return user, amount, 0
}

func (s *Server) writeApplied(w http.ResponseWriter) int {
	return s.writeJSON(w, http.StatusOK, operationResponse{
		Status:   "applied",
		Sequence: s.engine.Sequence(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("write response failed")
	}
	return status
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) int {
	return s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps engine and query errors to HTTP statuses. Validation
// failures are 400, business rejections are 422, conflicts with the
// current solvency state are 409, unknown accounts 404.
func (s *Server) writeError(w http.ResponseWriter, err error) int {
	var breaks *engine.BreaksHealthFactorError
	switch {
	case errors.As(err, &breaks):
		return s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:        err.Error(),
			HealthFactor: breaks.HealthFactor.Dec(),
		})
	case errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, engine.ErrNotAllowedToken):
		return s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, query.ErrAccountNotFound):
		return s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrInsufficientCollateral),
		errors.Is(err, ledger.ErrInsufficientDebt),
		errors.Is(err, token.ErrInsufficientFunds):
		return s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrHealthFactorOk),
		errors.Is(err, engine.ErrHealthFactorNotImproved):
		return s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("internal error")
		return s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
