package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterBillingRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterBillingRoutes(r.Group("/api/v1/billing"), nil)
	RegisterAdminBillingRoutes(r.Group("/api/v1/admin"), nil)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("GET /api/v1/billing/subscription"))
	require.True(t, contains("GET /api/v1/billing/invoices"))
	require.True(t, contains("POST /api/v1/admin/list_subscriptions"))
	require.True(t, contains("POST /api/v1/admin/get_billing_statistic"))
	require.True(t, contains("POST /api/v1/admin/list_webhook_events"))
}
