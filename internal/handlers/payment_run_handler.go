package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/repository"
	"payment-run-settlement-backend/internal/services/directcredit"
	"payment-run-settlement-backend/internal/services/paymentrun"
)

type PaymentRunHandler struct {
	runs  *paymentrun.Service
	files *directcredit.Service
	bills *repository.BillRepository
}

func NewPaymentRunHandler(runs *paymentrun.Service, files *directcredit.Service, bills *repository.BillRepository) *PaymentRunHandler {
	return &PaymentRunHandler{runs: runs, files: files, bills: bills}
}

func (h *PaymentRunHandler) CreateRun(c *gin.Context) {
	var payload struct {
		CompanyID     string `json:"company_id" binding:"required,uuid"`
		BankAccountID string `json:"bank_account_id" binding:"required,uuid"`
		RunDate       string `json:"run_date" binding:"required"` // "2006-01-02"
		CreatedBy     string `json:"created_by" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	runDate, err := time.Parse("2006-01-02", payload.RunDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run date, expected yyyy-mm-dd"})
		return
	}

	run, err := h.runs.CreateRun(c.Request.Context(),
		uuid.MustParse(payload.CompanyID), uuid.MustParse(payload.BankAccountID),
		runDate, payload.CreatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

func (h *PaymentRunHandler) GetRun(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// ListRuns pages newest first; ?before=RFC3339 continues from the previous
// page's oldest created_at.
func (h *PaymentRunHandler) ListRuns(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
		return
	}
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor, expected RFC3339"})
			return
		}
		before = &parsed
	}
	runs, err := h.runs.List(c.Request.Context(), companyID, c.Query("status"), before, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *PaymentRunHandler) AddAllocations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Bills []struct {
			BillID string           `json:"bill_id" binding:"required,uuid"`
			Amount *decimal.Decimal `json:"amount"`
		} `json:"bills" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	requests := make([]paymentrun.AllocationRequest, 0, len(payload.Bills))
	for _, b := range payload.Bills {
		requests = append(requests, paymentrun.AllocationRequest{
			BillID: uuid.MustParse(b.BillID),
			Amount: b.Amount,
		})
	}
	run, err := h.runs.AddAllocations(c.Request.Context(), id, requests)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *PaymentRunHandler) RemoveAllocation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	billID, ok := parseID(c, "billId")
	if !ok {
		return
	}
	run, err := h.runs.RemoveAllocation(c.Request.Context(), id, billID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *PaymentRunHandler) CompleteRun(c *gin.Context) {
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
	run, err := h.runs.Complete(c.Request.Context(), id, payload.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// DownloadFile streams the bank-submission file for a completed run. With
// ?verbose=1 the response is JSON carrying the content plus any encoding
// warnings instead of a raw attachment.
func (h *PaymentRunHandler) DownloadFile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	format := c.DefaultQuery("format", directcredit.FormatGeneric)

	result, err := h.files.EncodeRun(c.Request.Context(), id, format)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("verbose") != "" {
		c.JSON(http.StatusOK, gin.H{
			"filename": result.Filename,
			"content":  string(result.Content),
			"warnings": result.Warnings,
		})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// CreateBill records a payable obligation so it can be pulled into a run.
// Bills normally arrive from the purchasing side; this is the minimal input
// surface for external callers.
func (h *PaymentRunHandler) CreateBill(c *gin.Context) {
	var payload struct {
		CompanyID          string          `json:"company_id" binding:"required,uuid"`
		BillNumber         string          `json:"bill_number" binding:"required"`
		PayeeName          string          `json:"payee_name" binding:"required"`
		PayeeBSB           string          `json:"payee_bsb"`
		PayeeAccountNumber string          `json:"payee_account_number"`
		Currency           string          `json:"currency" binding:"required"`
		Amount             decimal.Decimal `json:"amount" binding:"required"`
		DueDate            string          `json:"due_date"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be greater than zero"})
		return
	}
	dueDate := time.Now().UTC()
	if payload.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", payload.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due date, expected yyyy-mm-dd"})
			return
		}
		dueDate = parsed
	}

	bill := &models.Bill{
		ID:                 uuid.New(),
		CompanyID:          uuid.MustParse(payload.CompanyID),
		BillNumber:         payload.BillNumber,
		PayeeName:          payload.PayeeName,
		PayeeBSB:           payload.PayeeBSB,
		PayeeAccountNumber: payload.PayeeAccountNumber,
		Currency:           payload.Currency,
		TotalAmount:        payload.Amount,
		OutstandingBalance: payload.Amount,
		Status:             models.BillStatusOpen,
		DueDate:            dueDate,
		CreatedAt:          time.Now().UTC(),
	}
	if err := h.bills.CreateBill(c.Request.Context(), bill); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bill": bill})
}
