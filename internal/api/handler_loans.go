package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/model"
)

type loanResponse struct {
	loan.Result
	Loan *model.Loan `json:"loan,omitempty"`
}

// respondLoan writes the outcome of a loan operation. A loan saved only to
// the local mirror is still returned.
func respondLoan(c *gin.Context, l *model.Loan, err error, okStatus int) {
	if err != nil && statusOf(err) == http.StatusInternalServerError {
		slog.Error("Loan operation failed", slog.String("path", c.FullPath()), logfields.Error(err))
	}
	status := statusOf(err)
	if err == nil {
		status = okStatus
	}
	c.JSON(status, loanResponse{Result: loan.ResultOf(err), Loan: l})
}

// ListLoans handles GET /api/loans.
func (h *Handler) ListLoans(c *gin.Context) {
	loans, meta := h.loans.List(c.Request.Context())
	staleHeader(c, meta)
	if status := c.Query("status"); status != "" {
		filtered := []*model.Loan{}
		for _, l := range loans {
			if string(l.Status) == status {
				filtered = append(filtered, l)
			}
		}
		loans = filtered
	}
	c.JSON(http.StatusOK, loans)
}

// GetLoan handles GET /api/loans/:id.
func (h *Handler) GetLoan(c *gin.Context) {
	l, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLoan(c, nil, err, http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, l)
}

// CreateLoan handles POST /api/loans.
func (h *Handler) CreateLoan(c *gin.Context) {
	var req loan.NewLoan
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	l, err := h.loans.Create(c.Request.Context(), technician(c), req)
	respondLoan(c, l, err, http.StatusCreated)
}

// ActivateLoan handles POST /api/loans/:id/activate.
func (h *Handler) ActivateLoan(c *gin.Context) {
	l, err := h.loans.Activate(c.Request.Context(), technician(c), c.Param("id"))
	respondLoan(c, l, err, http.StatusOK)
}

type extendRequest struct {
	NewReturnDate time.Time `json:"newReturnDate" binding:"required"`
	Reason        string    `json:"reason"`
}

// ExtendLoan handles POST /api/loans/:id/extend.
func (h *Handler) ExtendLoan(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	l, err := h.loans.Extend(c.Request.Context(), technician(c), c.Param("id"), req.NewReturnDate, req.Reason)
	respondLoan(c, l, err, http.StatusOK)
}

// ReturnLoan handles POST /api/loans/:id/return. The body is optional.
func (h *Handler) ReturnLoan(c *gin.Context) {
	var req loan.ReturnInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
			return
		}
	}
	l, err := h.loans.Return(c.Request.Context(), technician(c), c.Param("id"), req)
	respondLoan(c, l, err, http.StatusOK)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelLoan handles POST /api/loans/:id/cancel. The body is optional.
func (h *Handler) CancelLoan(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
			return
		}
	}
	l, err := h.loans.Cancel(c.Request.Context(), technician(c), c.Param("id"), req.Reason)
	respondLoan(c, l, err, http.StatusOK)
}

// GetHistory handles GET /api/loans/history.
func (h *Handler) GetHistory(c *gin.Context) {
	f := loan.HistoryFilter{
		UserName:   c.Query("user"),
		ComputerID: c.Query("computerId"),
		EventType:  model.LoanEvent(c.Query("eventType")),
	}
	var err error
	if f.Since, err = parseTimeParam(c, "since"); err != nil {
		return
	}
	if f.Until, err = parseTimeParam(c, "until"); err != nil {
		return
	}
	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid limit"})
			return
		}
	}
	c.JSON(http.StatusOK, h.loans.History(c.Request.Context(), f))
}

func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid '" + name + "' timestamp format. Use RFC3339."})
		return time.Time{}, err
	}
	return t, nil
}

// GetStatistics handles GET /api/loans/statistics.
func (h *Handler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.loans.Statistics(c.Request.Context()))
}

// GetSettings handles GET /api/loans/settings.
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.loans.Settings(c.Request.Context()))
}

// PutSettings handles PUT /api/loans/settings. Fields left out of the body
// keep their current value.
func (h *Handler) PutSettings(c *gin.Context) {
	var req model.SettingsPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, loan.Result{Reason: "invalid request"})
		return
	}
	err := h.loans.UpdateSettings(c.Request.Context(), technician(c), req)
	c.JSON(statusOf(err), loan.ResultOf(err))
}
