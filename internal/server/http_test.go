package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SynthLedger/internal/engine"
	"SynthLedger/internal/fixedpoint"
	"SynthLedger/internal/observability"
	"SynthLedger/internal/oracle"
	"SynthLedger/internal/query"
	"SynthLedger/internal/server"
	"SynthLedger/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// --- Test helpers ---

type apiRig struct {
	router http.Handler
	bank   *token.Bank
	health *observability.HealthChecker
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	feeds := oracle.NewFeedStore()
	feeds.SetPrice("weth-usd", fixedpoint.FromFeedUnits(2000, 8), 8, time.Now())

	bank := token.NewBank()
	eng, err := engine.New(
		[]string{"WETH"}, []string{"weth-usd"}, engine.DefaultParams(),
		engine.Deps{
			Prices:    feeds,
			Bank:      bank,
			Synthetic: token.NewSyntheticSupply(),
			Logger:    zerolog.Nop(),
		},
	)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}

	health := observability.NewHealthChecker()
	health.SetReady(true)
	srv := server.NewServer(eng, query.NewQueryService(nil), bank, health, zerolog.Nop(), nil)
	return &apiRig{router: srv.Router(), bank: bank, health: health}
}

func (r *apiRig) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)
	return rec
}

func (r *apiRig) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// fundAndDeposit seeds user's bank balance with 10 WETH and deposits it
// through the API.
func (r *apiRig) fundAndDeposit(t *testing.T, user uuid.UUID) {
	t.Helper()
	body := map[string]string{
		"user_id":  user.String(),
		"asset":    "WETH",
		"quantity": "10000000000000000000",
	}
	if rec := r.post(t, "/v1/bank/fund", body); rec.Code != http.StatusOK {
		t.Fatalf("fund: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := r.post(t, "/v1/collateral/deposit", body); rec.Code != http.StatusOK {
		t.Fatalf("deposit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ============================================================================
// Test: Health probes
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	rig := newAPIRig(t)

	if rec := rig.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := rig.get(t, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d", rec.Code)
	}

	rig.health.SetReady(false)
	if rec := rig.get(t, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz after SetReady(false): expected 503, got %d", rec.Code)
	}
}

// ============================================================================
// Test: Operation endpoints
// ============================================================================

func TestDepositMintHealthFlow(t *testing.T) {
	rig := newAPIRig(t)
	user := uuid.New()
	rig.fundAndDeposit(t, user)

	rec := rig.post(t, "/v1/synthetic/mint", map[string]string{
		"user_id": user.String(),
		"amount":  "100000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mint: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var op struct {
		Status   string `json:"status"`
		Sequence int64  `json:"sequence"`
	}
	decodeBody(t, rec, &op)
	if op.Status != "applied" {
		t.Errorf("expected status applied, got %q", op.Status)
	}
	if op.Sequence != 2 {
		t.Errorf("expected sequence 2 after deposit and mint, got %d", op.Sequence)
	}

	rec = rig.get(t, "/v1/accounts/"+user.String()+"/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("account health: expected 200, got %d", rec.Code)
	}
	var healthResp struct {
		Debt            string `json:"debt"`
		CollateralValue string `json:"collateral_value"`
		HealthFactor    string `json:"health_factor"`
	}
	decodeBody(t, rec, &healthResp)
	if healthResp.Debt != "100000000000000000000" {
		t.Errorf("expected debt 100e18, got %s", healthResp.Debt)
	}
	if healthResp.CollateralValue != "20000000000000000000000" {
		t.Errorf("expected collateral value 20000e18, got %s", healthResp.CollateralValue)
	}
	// 10,000 adjusted value over 100 debt.
	if healthResp.HealthFactor != "100000000000000000000" {
		t.Errorf("expected health factor 100e18, got %s", healthResp.HealthFactor)
	}
}

func TestDeposit_MalformedRequests(t *testing.T) {
	rig := newAPIRig(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad user id", map[string]string{"user_id": "nope", "asset": "WETH", "quantity": "1"}},
		{"bad quantity", map[string]string{"user_id": uuid.New().String(), "asset": "WETH", "quantity": "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := rig.post(t, "/v1/collateral/deposit", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/collateral/deposit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestDeposit_UnknownAsset(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.post(t, "/v1/collateral/deposit", map[string]string{
		"user_id":  uuid.New().String(),
		"asset":    "DOGE",
		"quantity": "1000000000000000000",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unregistered asset, got %d", rec.Code)
	}
}

func TestMint_BreaksHealthFactor(t *testing.T) {
	rig := newAPIRig(t)
	user := uuid.New()
	rig.fundAndDeposit(t, user)

	// Adjusted collateral value is 10,000; minting past it is a business
	// rejection with the offending health factor in the body.
	rec := rig.post(t, "/v1/synthetic/mint", map[string]string{
		"user_id": user.String(),
		"amount":  "10001000000000000000000",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var errResp struct {
		Error        string `json:"error"`
		HealthFactor string `json:"health_factor"`
	}
	decodeBody(t, rec, &errResp)
	if errResp.HealthFactor == "" {
		t.Error("expected health_factor in the error body")
	}
}

func TestLiquidate_HealthyTargetConflicts(t *testing.T) {
	rig := newAPIRig(t)
	target := uuid.New()
	rig.fundAndDeposit(t, target)
	rec := rig.post(t, "/v1/synthetic/mint", map[string]string{
		"user_id": target.String(),
		"amount":  "100000000000000000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mint: expected 200, got %d", rec.Code)
	}

	rec = rig.post(t, "/v1/liquidations", map[string]string{
		"liquidator_id": uuid.New().String(),
		"target_id":     target.String(),
		"asset":         "WETH",
		"debt_to_cover": "100000000000000000000",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for healthy target, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRedeem_InsufficientCollateral(t *testing.T) {
	rig := newAPIRig(t)
	user := uuid.New()
	rig.fundAndDeposit(t, user)

	rec := rig.post(t, "/v1/collateral/redeem", map[string]string{
		"user_id":  user.String(),
		"asset":    "WETH",
		"quantity": "11000000000000000000",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ============================================================================
// Test: Query endpoints
// ============================================================================

func TestUsdValueEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.get(t, "/v1/assets/WETH/usd-value?quantity=15000000000000000000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		UsdValue string `json:"usd_value"`
	}
	decodeBody(t, rec, &resp)
	if resp.UsdValue != "30000000000000000000000" {
		t.Errorf("expected 30000e18, got %s", resp.UsdValue)
	}
}

func TestTokenAmountEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.get(t, "/v1/assets/WETH/token-amount?usd_value=100000000000000000000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Quantity string `json:"quantity"`
	}
	decodeBody(t, rec, &resp)
	if resp.Quantity != "50000000000000000" {
		t.Errorf("expected 0.05e18, got %s", resp.Quantity)
	}
}

func TestCollateralBalanceEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	user := uuid.New()
	rig.fundAndDeposit(t, user)

	rec := rig.get(t, fmt.Sprintf("/v1/accounts/%s/collateral/WETH", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Quantity string `json:"quantity"`
	}
	decodeBody(t, rec, &resp)
	if resp.Quantity != "10000000000000000000" {
		t.Errorf("expected 10e18, got %s", resp.Quantity)
	}
}

func TestParamsEndpoint(t *testing.T) {
	rig := newAPIRig(t)

	rec := rig.get(t, "/v1/params")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		LiquidationThreshold uint64   `json:"liquidation_threshold"`
		LiquidationPrecision uint64   `json:"liquidation_precision"`
		LiquidationBonus     uint64   `json:"liquidation_bonus"`
		MinHealthFactor      string   `json:"min_health_factor"`
		CollateralAssets     []string `json:"collateral_assets"`
	}
	decodeBody(t, rec, &resp)
	if resp.LiquidationThreshold != 50 || resp.LiquidationPrecision != 100 || resp.LiquidationBonus != 10 {
		t.Errorf("unexpected policy: %+v", resp)
	}
	if resp.MinHealthFactor != "1000000000000000000" {
		t.Errorf("expected min health factor 1e18, got %s", resp.MinHealthFactor)
	}
	if len(resp.CollateralAssets) != 1 || resp.CollateralAssets[0] != "WETH" {
		t.Errorf("expected [WETH], got %v", resp.CollateralAssets)
	}
}
