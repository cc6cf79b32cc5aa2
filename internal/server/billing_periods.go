package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/bukukas/internal/billingperiod/domain"
	"github.com/smallbiznis/bukukas/internal/calendar"
	"github.com/smallbiznis/bukukas/internal/csvio"
	"go.uber.org/zap"
)

type createScheduleRequest struct {
	SubscriberID      string           `json:"subscriber_id"`
	RefID             string           `json:"ref_id"`
	SubscriberName    string           `json:"subscriber_name"`
	ProgramName       string           `json:"program_name"`
	MonthlyPrice      *decimal.Decimal `json:"monthly_price"`
	StartDate         string           `json:"start_date"`
	InitialTermMonths int              `json:"initial_term_months"`
	FirstDiscount     *decimal.Decimal `json:"first_discount"`
}

func (s *Server) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	discount := decimal.Zero
	if req.FirstDiscount != nil {
		discount = *req.FirstDiscount
	}

	resp, err := s.periodSvc.CreateSchedule(c.Request.Context(), billingperioddomain.CreateScheduleRequest{
		SubscriberID:      strings.TrimSpace(req.SubscriberID),
		RefID:             strings.TrimSpace(req.RefID),
		SubscriberName:    strings.TrimSpace(req.SubscriberName),
		ProgramName:       strings.TrimSpace(req.ProgramName),
		MonthlyPrice:      req.MonthlyPrice,
		StartDate:         strings.TrimSpace(req.StartDate),
		InitialTermMonths: req.InitialTermMonths,
		FirstDiscount:     discount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingPeriod(c *gin.Context) {
	resp, err := s.periodSvc.GetEntriesByPeriod(c.Request.Context(), c.Param("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPeriodAggregate(c *gin.Context) {
	resp, err := s.periodSvc.GetAggregateByPeriod(c.Request.Context(), c.Param("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAggregates(c *gin.Context) {
	var query struct {
		From string `form:"from"`
		To   string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.periodSvc.ListAggregates(c.Request.Context(), billingperioddomain.ListAggregatesRequest{
		From: strings.TrimSpace(query.From),
		To:   strings.TrimSpace(query.To),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setEntryStatusRequest struct {
	Status   string `json:"status"`
	PaidDate string `json:"paid_date"`
}

func (s *Server) SetEntryStatus(c *gin.Context) {
	var req setEntryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidDate, err := parseOptional(req.PaidDate, calendar.ParseDate)
	if err != nil {
		AbortWithError(c, newValidationError("paid_date", "invalid_paid_date", "paid_date must be formatted as YYYY-MM-DD"))
		return
	}

	resp, err := s.periodSvc.SetEntryStatus(c.Request.Context(), billingperioddomain.SetEntryStatusRequest{
		Period:   c.Param("period"),
		EntryID:  c.Param("id"),
		Status:   req.Status,
		PaidDate: paidDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateEntryRequest struct {
	StartDate    *string          `json:"start_date"`
	TermMonths   *int             `json:"term_months"`
	MonthlyPrice *decimal.Decimal `json:"monthly_price"`
	Discount     *decimal.Decimal `json:"discount"`
	Status       *string          `json:"status"`
}

func (s *Server) UpdateEntry(c *gin.Context) {
	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.periodSvc.UpdateEntry(c.Request.Context(), billingperioddomain.UpdateEntryRequest{
		Period:       c.Param("period"),
		EntryID:      c.Param("id"),
		StartDate:    req.StartDate,
		TermMonths:   req.TermMonths,
		MonthlyPrice: req.MonthlyPrice,
		Discount:     req.Discount,
		Status:       req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteEntry(c *gin.Context) {
	err := s.periodSvc.DeleteEntry(c.Request.Context(), billingperioddomain.DeleteEntryRequest{
		Period:  c.Param("period"),
		EntryID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ExportBillingPeriod(c *gin.Context) {
	doc, err := s.periodSvc.GetEntriesByPeriod(c.Request.Context(), c.Param("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="billing-%s.csv"`, doc.Period))
	c.Status(http.StatusOK)
	if err := csvio.WriteEntries(c.Writer, doc.Entries); err != nil {
		s.log.Error("period export failed", zap.String("period", doc.Period), zap.Error(err))
	}
}

func (s *Server) RegenerateNextFiscalYear(c *gin.Context) {
	resp, err := s.periodSvc.RegenerateNextFiscalYear(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
