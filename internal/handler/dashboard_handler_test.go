package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ict-admin-api/internal/dto"
	"github.com/noah-isme/ict-admin-api/internal/middleware"
	"github.com/noah-isme/ict-admin-api/internal/models"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set("response_meta", map[string]interface{}{})
	return c, rec
}

func withClaims(c *gin.Context, userID string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Username: "jdoe", DisplayName: "Jane Doe", Role: models.RoleFinance})
}

type fakeDashboardSrv struct {
	resp      *dto.DashboardResponse
	err       error
	lastPerms models.Permissions
	stats     models.FinanceStats
	statsErr  error
}

func (f *fakeDashboardSrv) Render(_ context.Context, perms models.Permissions) (*dto.DashboardResponse, error) {
	f.lastPerms = perms
	return f.resp, f.err
}

func (f *fakeDashboardSrv) FinanceStats(context.Context) (models.FinanceStats, error) {
	return f.stats, f.statsErr
}

func TestDashboardHandlerRequiresPermissions(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	handler.Dashboard(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerRendersProfile(t *testing.T) {
	srv := &fakeDashboardSrv{resp: &dto.DashboardResponse{Profile: "finance", WidgetTitle: "Recent Payments"}}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")
	perms := models.Permissions{Caps: models.CapFinance}
	c.Set(middleware.ContextPermissionsKey, perms)
	middleware.SetCacheHit(c, true)

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, perms, srv.lastPerms)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	var payload dto.DashboardResponse
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "finance", payload.Profile)
	assert.Equal(t, "Recent Payments", payload.WidgetTitle)
}

func TestDashboardHandlerPropagatesStoreFailure(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("db down")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")
	c.Set(middleware.ContextPermissionsKey, models.Permissions{})

	handler.Dashboard(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error["code"])
}

func TestDashboardHandlerPermissions(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/me/permissions", "")
	withClaims(c, "user-1")
	c.Set(middleware.ContextPermissionsKey, models.Permissions{Caps: models.CapFinance | models.CapSuperAdmin})

	handler.Permissions(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload dto.PermissionsResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &payload))
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, "finance", payload.Profile)
	assert.True(t, payload.Flags.IsFinance)
	assert.True(t, payload.Flags.IsSuperAdmin)
	assert.False(t, payload.Flags.IsRegistrar)
}

func TestDashboardHandlerFinanceStats(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{stats: models.FinanceStats{
		PaymentsToday:    decimal.RequireFromString("1500"),
		OutstandingTotal: decimal.RequireFromString("2500"),
		CreditTotal:      decimal.RequireFromString("200"),
	}})
	c, rec := newTestContext(http.MethodGet, "/finance/stats", "")

	handler.FinanceStats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
	assert.Equal(t, "1500", stats["payments_today"])
	assert.Equal(t, "200", stats["credit_total"])
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}
