package models

// CreateEventRequest represents a request to create a new event
type CreateEventRequest struct {
	Name            string  `json:"name" binding:"required,max=200"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	FundingGoal     float64 `json:"funding_goal" binding:"required,gt=0"`
	TokenPrice      float64 `json:"token_price" binding:"required,gt=0"`
	RevenueSharePct float64 `json:"revenue_share_pct" binding:"min=0,max=100"`
	TicketPrice     float64 `json:"ticket_price" binding:"omitempty,gt=0"`
}

// InvestRequest represents a token purchase request
type InvestRequest struct {
	InvestorAddress string  `json:"investor_address" binding:"required,len=56"`
	TokenAmount     float64 `json:"token_amount" binding:"required,gt=0"`
}

// RecordInvestmentRequest confirms a settled purchase transaction
type RecordInvestmentRequest struct {
	InvestorAddress string  `json:"investor_address" binding:"required,len=56"`
	TokenAmount     float64 `json:"token_amount" binding:"required,gt=0"`
	UsdcPaid        float64 `json:"usdc_paid" binding:"required,gt=0"`
	StellarTxHash   string  `json:"stellar_tx_hash" binding:"required"`
}

// TicketSaleRequest represents a manually recorded ticket sale
type TicketSaleRequest struct {
	BuyerAddress  string  `json:"buyer_address" binding:"required"`
	UsdcPaid      float64 `json:"usdc_paid" binding:"required,gt=0"`
	StellarTxHash *string `json:"stellar_tx_hash"`
}

// WalletAuthRequest represents a wallet-address login request
type WalletAuthRequest struct {
	Address string `json:"address" binding:"required,len=56"`
	Role    string `json:"role"` // "ORGANIZER" or "INVESTOR", defaults to INVESTOR
}
