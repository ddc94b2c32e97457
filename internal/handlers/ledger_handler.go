package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/repository"
	"payment-run-settlement-backend/internal/services/ledger"
)

type LedgerHandler struct {
	engine   *ledger.Engine
	accounts *repository.LedgerRepository
	banks    *repository.BankAccountRepository
}

func NewLedgerHandler(engine *ledger.Engine, accounts *repository.LedgerRepository, banks *repository.BankAccountRepository) *LedgerHandler {
	return &LedgerHandler{engine: engine, accounts: accounts, banks: banks}
}

func (h *LedgerHandler) PostTransaction(c *gin.Context) {
	var payload struct {
		CompanyID   string `json:"company_id" binding:"required,uuid"`
		Currency    string `json:"currency" binding:"required"`
		Date        string `json:"date" binding:"required"`
		Reference   string `json:"reference"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by" binding:"required"`
		Entries     []struct {
			AccountID string          `json:"account_id" binding:"required,uuid"`
			Direction string          `json:"direction" binding:"required"`
			Amount    decimal.Decimal `json:"amount" binding:"required"`
		} `json:"entries" binding:"required"`
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

	draft := ledger.Draft{
		CompanyID:       uuid.MustParse(payload.CompanyID),
		Currency:        payload.Currency,
		TransactionDate: date,
		Type:            models.TxnTypeManual,
		Reference:       payload.Reference,
		Description:     payload.Description,
		CreatedBy:       payload.CreatedBy,
	}
	for _, e := range payload.Entries {
		draft.Entries = append(draft.Entries, ledger.DraftEntry{
			AccountID: uuid.MustParse(e.AccountID),
			Direction: e.Direction,
			Amount:    e.Amount,
		})
	}

	txn, err := h.engine.Post(c.Request.Context(), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

func (h *LedgerHandler) ReverseTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Actor  string `json:"actor" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	txn, err := h.engine.Reverse(c.Request.Context(), id, payload.Actor, payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	txn, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var payload struct {
		CompanyID string `json:"company_id" binding:"required,uuid"`
		Code      string `json:"code" binding:"required"`
		Name      string `json:"name" binding:"required"`
		Type      string `json:"type" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	account := &models.LedgerAccount{
		ID:        uuid.New(),
		CompanyID: uuid.MustParse(payload.CompanyID),
		Code:      payload.Code,
		Name:      payload.Name,
		Type:      payload.Type,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.accounts.CreateAccount(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

func (h *LedgerHandler) CreateBankAccount(c *gin.Context) {
	var payload struct {
		CompanyID       string `json:"company_id" binding:"required,uuid"`
		Name            string `json:"name" binding:"required"`
		Currency        string `json:"currency" binding:"required"`
		LedgerAccountID string `json:"ledger_account_id" binding:"required,uuid"`
		BSB             string `json:"bsb"`
		AccountNumber   string `json:"account_number"`
		InstitutionCode string `json:"institution_code"`
		RemitterName    string `json:"remitter_name"`
		DirectEntryID   string `json:"direct_entry_id"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	account := &models.BankAccount{
		ID:              uuid.New(),
		CompanyID:       uuid.MustParse(payload.CompanyID),
		Name:            payload.Name,
		Currency:        payload.Currency,
		LedgerAccountID: uuid.MustParse(payload.LedgerAccountID),
		BSB:             payload.BSB,
		AccountNumber:   payload.AccountNumber,
		InstitutionCode: payload.InstitutionCode,
		RemitterName:    payload.RemitterName,
		DirectEntryID:   payload.DirectEntryID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.banks.CreateBankAccount(c.Request.Context(), account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bank_account": account})
}
