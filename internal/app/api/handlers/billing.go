package handlers

import (
	"net/http"

	"github.com/launchkit/billing/internal/store"
	"github.com/launchkit/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// @Summary      Get subscription
// @Description  Returns the subscription for a user, or null when none exists.
// @Tags         Billing
// @Produce      json
// @Param        user_id query string true "User ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/billing/subscription [get]
func ApiGetSubscription(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		sub, err := st.GetSubscriptionByUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Invoice history
// @Description  Returns the payment ledger for a subscription ordered by recorded_at.
// @Tags         Billing
// @Produce      json
// @Param        subscription_id query string true "Subscription ID"
// @Success      200  {object}  handlers.RespInvoiceHistory
// @Router       /api/v1/billing/invoices [get]
func ApiListInvoicePayments(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		subscriptionID := c.Query("subscription_id")
		if subscriptionID == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing subscription_id"))
			return
		}
		items, err := st.ListInvoicePayments(c.Request.Context(), subscriptionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

func RegisterBillingRoutes(r gin.IRouter, st store.Store) {
	r.GET("/subscription", ApiGetSubscription(st))
	r.GET("/invoices", ApiListInvoicePayments(st))
}
