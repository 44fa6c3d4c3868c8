package server

// Request and response bodies for the HTTP API. All amounts on the wire
// are wad decimal strings.

type depositRequest struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

type mintRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

type depositAndMintRequest struct {
	UserID     string `json:"user_id"`
	Asset      string `json:"asset"`
	Quantity   string `json:"quantity"`
	MintAmount string `json:"mint_amount"`
}

type redeemRequest struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

type burnRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

type redeemForSyntheticRequest struct {
	UserID     string `json:"user_id"`
	Asset      string `json:"asset"`
	Quantity   string `json:"quantity"`
	BurnAmount string `json:"burn_amount"`
}

type liquidateRequest struct {
	LiquidatorID string `json:"liquidator_id"`
	TargetID     string `json:"target_id"`
	Asset        string `json:"asset"`
	DebtToCover  string `json:"debt_to_cover"`
}

type fundRequest struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

type operationResponse struct {
	Status   string `json:"status"`
	Sequence int64  `json:"sequence"`
}

type accountHealthResponse struct {
	UserID          string `json:"user_id"`
	Debt            string `json:"debt"`
	CollateralValue string `json:"collateral_value"`
	HealthFactor    string `json:"health_factor"`
}

type collateralBalanceResponse struct {
	UserID   string `json:"user_id"`
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

type usdValueResponse struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
	UsdValue string `json:"usd_value"`
}

type tokenAmountResponse struct {
	Asset    string `json:"asset"`
	UsdValue string `json:"usd_value"`
	Quantity string `json:"quantity"`
}

type paramsResponse struct {
	LiquidationThreshold uint64   `json:"liquidation_threshold"`
	LiquidationPrecision uint64   `json:"liquidation_precision"`
	LiquidationBonus     uint64   `json:"liquidation_bonus"`
	MinHealthFactor      string   `json:"min_health_factor"`
	CollateralAssets     []string `json:"collateral_assets"`
}

type errorResponse struct {
	Error        string `json:"error"`
	HealthFactor string `json:"health_factor,omitempty"`
}
