package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	billingoverviewdomain "github.com/smallbiznis/bukukas/internal/billingoverview/domain"
)

func (s *Server) GetFiscalYearOverview(c *gin.Context) {
	year, err := parseOptional(c.Param("year"), strconv.Atoi)
	if err != nil || year == nil {
		AbortWithError(c, newValidationError("year", "invalid_fiscal_year", "invalid fiscal year"))
		return
	}
	compare, err := parseOptional(c.Query("compare"), strconv.ParseBool)
	if err != nil {
		AbortWithError(c, newValidationError("compare", "invalid_compare", "invalid compare"))
		return
	}

	req := billingoverviewdomain.OverviewRequest{FiscalYear: *year}
	if compare != nil {
		req.Compare = *compare
	}

	resp, err := s.overviewSvc.GetFiscalYearOverview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
