package plans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/plans", ListPlans("USD"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Currency string `json:"currency"`
		Plans    []struct {
			ID        string `json:"id"`
			Amount    int64  `json:"amount"`
			Weeks     int    `json:"weeks"`
			Lifetime  bool   `json:"lifetime"`
			Recurring bool   `json:"recurring"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "usd", out.Currency)
	require.Len(t, out.Plans, 4)

	got := map[string]int64{}
	for _, p := range out.Plans {
		got[p.ID] = p.Amount
	}
	assert.Equal(t, map[string]int64{"1-week": 1287, "4-week": 3795, "12-week": 9700, "lifetime": 29700}, got)

	last := out.Plans[3]
	assert.Equal(t, "lifetime", last.ID)
	assert.True(t, last.Lifetime)
	assert.False(t, last.Recurring)
	assert.Zero(t, last.Weeks)
	assert.Equal(t, 12, out.Plans[2].Weeks)
}
