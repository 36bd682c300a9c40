package plans

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bot-access/internal/domain/plans"
)

type listPlansResponse struct {
	Currency string          `json:"currency"`
	Plans    []plans.Listing `json:"plans"`
}

func ListPlans(currency string) gin.HandlerFunc {
	resp := listPlansResponse{
		Currency: strings.ToLower(currency),
		Plans:    plans.Catalog(),
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}
