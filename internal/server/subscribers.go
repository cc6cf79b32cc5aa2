package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bukukas/internal/csvio"
	subscriberdomain "github.com/smallbiznis/bukukas/internal/subscriber/domain"
	"github.com/smallbiznis/bukukas/pkg/db/pagination"
)

type createSubscriberRequest struct {
	Name              string           `json:"name"`
	Program           string           `json:"program"`
	MonthlyPrice      decimal.Decimal  `json:"monthly_price"`
	StartDate         string           `json:"start_date"`
	InitialTermMonths int              `json:"initial_term_months"`
	FirstDiscount     *decimal.Decimal `json:"first_discount"`
	Metadata          map[string]any   `json:"metadata"`
	SkipSchedule      bool             `json:"skip_schedule"`
}

func (s *Server) CreateSubscriber(c *gin.Context) {
	var req createSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	discount := decimal.Zero
	if req.FirstDiscount != nil {
		discount = *req.FirstDiscount
	}

	resp, err := s.subscriberSvc.Create(c.Request.Context(), subscriberdomain.CreateSubscriberRequest{
		Name:              strings.TrimSpace(req.Name),
		Program:           strings.TrimSpace(req.Program),
		MonthlyPrice:      req.MonthlyPrice,
		StartDate:         strings.TrimSpace(req.StartDate),
		InitialTermMonths: req.InitialTermMonths,
		FirstDiscount:     discount,
		Metadata:          req.Metadata,
		SkipSchedule:      req.SkipSchedule,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscribers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		Name   string `form:"name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriberSvc.List(c.Request.Context(), subscriberdomain.ListSubscriberRequest{
		Status:    strings.TrimSpace(query.Status),
		Name:      strings.TrimSpace(query.Name),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriber(c *gin.Context) {
	resp, err := s.subscriberSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateSubscriberRequest struct {
	Name         *string          `json:"name"`
	Program      *string          `json:"program"`
	MonthlyPrice *decimal.Decimal `json:"monthly_price"`
	Status       *string          `json:"status"`
	Metadata     map[string]any   `json:"metadata"`
	Resync       bool             `json:"resync"`
}

func (s *Server) UpdateSubscriber(c *gin.Context) {
	var req updateSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriberSvc.Update(c.Request.Context(), subscriberdomain.UpdateSubscriberRequest{
		ID:           c.Param("id"),
		Name:         req.Name,
		Program:      req.Program,
		MonthlyPrice: req.MonthlyPrice,
		Status:       req.Status,
		Metadata:     req.Metadata,
		Resync:       req.Resync,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteSubscriber(c *gin.Context) {
	if err := s.subscriberSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

// ImportSubscribers reads a CSV upload from the "file" form field.
func (s *Server) ImportSubscribers(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	reqs, err := csvio.ReadSubscribers(file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriberSvc.Import(c.Request.Context(), reqs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
