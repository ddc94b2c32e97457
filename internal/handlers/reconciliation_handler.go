package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-run-settlement-backend/internal/models"
	service "payment-run-settlement-backend/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service *service.Service
}

func NewReconciliationHandler(svc *service.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: svc}
}

// ImportFeedItem records one externally reported statement line.
func (h *ReconciliationHandler) ImportFeedItem(c *gin.Context) {
	var payload struct {
		CompanyID     string          `json:"company_id" binding:"required,uuid"`
		BankAccountID string          `json:"bank_account_id" binding:"required,uuid"`
		Date          string          `json:"date" binding:"required"`
		Amount        decimal.Decimal `json:"amount" binding:"required"`
		Description   string          `json:"description"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected yyyy-mm-dd"})
		return
	}

	item, err := h.service.ImportFeedItem(c.Request.Context(), &models.BankFeedItem{
		CompanyID:     uuid.MustParse(payload.CompanyID),
		BankAccountID: uuid.MustParse(payload.BankAccountID),
		FeedDate:      date,
		Amount:        payload.Amount,
		Description:   payload.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feed_item": item})
}

func (h *ReconciliationHandler) MatchFeedItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		TransactionID string `json:"transaction_id" binding:"required,uuid"`
		MatchType     string `json:"match_type" binding:"required"`
		Actor         string `json:"actor" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	match, err := h.service.Match(c.Request.Context(), id,
		uuid.MustParse(payload.TransactionID), payload.MatchType, payload.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match": match})
}

func (h *ReconciliationHandler) UnmatchFeedItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.service.Unmatch(c.Request.Context(), id, payload.Actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "feed item unmatched"})
}

func (h *ReconciliationHandler) AutoMatchFeedItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	match, err := h.service.AutoMatch(c.Request.Context(), id, payload.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"match": match})
}

func (h *ReconciliationHandler) CurrentMatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	match, err := h.service.CurrentMatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if match == nil {
		c.JSON(http.StatusOK, gin.H{"match": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *ReconciliationHandler) MatchHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *ReconciliationHandler) Statistics(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
		return
	}
	counts, err := h.service.Statistics(c.Request.Context(), companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
