package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lumio/internal/auth"
	"lumio/internal/models"
	"lumio/internal/services"
	"lumio/internal/stellar"
)

type EventHandler struct {
	eventService        *services.EventService
	walletService       *services.WalletService
	investmentService   *services.InvestmentService
	revenueService      *services.RevenueService
	distributionService *services.DistributionService
}

func NewEventHandler(
	eventService *services.EventService,
	walletService *services.WalletService,
	investmentService *services.InvestmentService,
	revenueService *services.RevenueService,
	distributionService *services.DistributionService,
) *EventHandler {
	return &EventHandler{
		eventService:        eventService,
		walletService:       walletService,
		investmentService:   investmentService,
		revenueService:      revenueService,
		distributionService: distributionService,
	}
}

// respondError maps domain and ledger errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	if code, ok := services.CodeOf(err); ok {
		status := http.StatusBadRequest
		if code == services.ErrCodeNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": string(code)})
		return
	}

	var se *stellar.Error
	if errors.As(err, &se) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       se.Message,
			"code":        se.Code,
			"recoverable": se.Recoverable,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return uuid.Nil, false
	}
	return id, true
}

// CreateEvent creates a new event in DRAFT status
// POST /api/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	address, exists := auth.GetAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.eventService.CreateEvent(req, address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": event})
}

// GetEvents lists events, optionally filtered by organizer and status
// GET /api/events
func (h *EventHandler) GetEvents(c *gin.Context) {
	events, err := h.eventService.ListEvents(c.Query("organizer"), models.EventStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": events, "total": len(events)})
}

// GetEvent retrieves an event by ID
// GET /api/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	event, err := h.eventService.GetEvent(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// InitializeWallet provisions the event's custodial wallet
// POST /api/events/:id/wallet
func (h *EventHandler) InitializeWallet(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	event, err := h.eventService.InitializeWallet(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// FundWallet funds the custodial wallet through Friendbot (testnet only)
// POST /api/events/:id/fund
func (h *EventHandler) FundWallet(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	if err := h.eventService.FundWallet(c.Request.Context(), eventID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetupAsset configures the event asset and USDC trust line on-chain
// POST /api/events/:id/setup-asset
func (h *EventHandler) SetupAsset(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	result, err := h.walletService.SetupEventAsset(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// OpenFunding opens the event for investment
// POST /api/events/:id/open-funding
func (h *EventHandler) OpenFunding(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	event, err := h.eventService.OpenFunding(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// OpenTicketSales moves a funded event to LIVE
// POST /api/events/:id/open-sales
func (h *EventHandler) OpenTicketSales(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	event, err := h.eventService.OpenTicketSales(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// Invest builds a partially signed token purchase transaction
// POST /api/events/:id/invest
func (h *EventHandler) Invest(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	var req models.InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purchase, err := h.investmentService.PurchaseTokens(c.Request.Context(), eventID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": purchase})
}

// RecordInvestment records a settled purchase transaction
// POST /api/events/:id/investments
func (h *EventHandler) RecordInvestment(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	var req models.RecordInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	investment, err := h.investmentService.RecordInvestment(eventID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": investment})
}

// GetInvestments lists investments for an event
// GET /api/events/:id/investments
func (h *EventHandler) GetInvestments(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	investments, err := h.investmentService.EventInvestments(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": investments, "total": len(investments)})
}

// GetMyInvestments lists the authenticated investor's investments
// GET /api/investments
func (h *EventHandler) GetMyInvestments(c *gin.Context) {
	address, exists := auth.GetAddress(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	investments, err := h.investmentService.InvestorInvestments(address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": investments, "total": len(investments)})
}

// RecordTicketSale records a ticket sale against event revenue
// POST /api/events/:id/tickets
func (h *EventHandler) RecordTicketSale(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	var req models.TicketSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.revenueService.RecordTicketSale(eventID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": ticket})
}

// GetTickets lists tickets for an event
// GET /api/events/:id/tickets
func (h *EventHandler) GetTickets(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	tickets, err := h.revenueService.EventTickets(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": tickets, "total": len(tickets)})
}

// SyncPayments reconciles on-chain USDC payments with the ticket ledger
// POST /api/events/:id/sync-payments
func (h *EventHandler) SyncPayments(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	result, err := h.revenueService.SyncPayments(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// GetRevenue returns the event's revenue summary
// GET /api/events/:id/revenue
func (h *EventHandler) GetRevenue(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	stats, err := h.revenueService.Stats(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// PreviewPayout returns a dry-run payout calculation
// GET /api/events/:id/payout-preview
func (h *EventHandler) PreviewPayout(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	calc, err := h.distributionService.CalculatePayout(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": calc})
}

// Distribute executes a revenue distribution to all token holders
// POST /api/events/:id/distribute
func (h *EventHandler) Distribute(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	result, err := h.distributionService.ExecuteDistribution(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// GetDistribution retrieves one distribution attempt
// GET /api/distributions/:id
func (h *EventHandler) GetDistribution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid distribution id"})
		return
	}

	distribution, err := h.distributionService.Distribution(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": distribution})
}

// GetDistributions lists distribution attempts for an event
// GET /api/events/:id/distributions
func (h *EventHandler) GetDistributions(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	distributions, err := h.distributionService.Distributions(eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": distributions, "total": len(distributions)})
}
