package handlers

import (
	"net/http"

	"github.com/launchkit/billing/internal/app/service/statistics"
	"github.com/launchkit/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// @Summary      List Subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of all mirrored subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.ListSubscriptionsRequest true "List subscriptions request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListSubscriptions
// @Router       /api/v1/admin/list_subscriptions [post]
func ApiListSubscriptions(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.ListSubscriptionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := stats.ListSubscriptions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Billing Statistics (Admin)
// @Description  Retrieves aggregate billing statistics over subscriptions and the invoice ledger.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.BillingStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespBillingStatistic
// @Router       /api/v1/admin/get_billing_statistic [post]
func ApiGetBillingStatistic(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.BillingStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if len(req.DataItems) == 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing data_items"))
			return
		}
		res, err := stats.GetBillingStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Webhook Events (Admin)
// @Description  Retrieves recent webhook event log entries, optionally scoped to one remote subscription.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListWebhookEventsRequest true "List webhook events request"
// @Success      200  {object}  handlers.RespListWebhookEvents
// @Router       /api/v1/admin/list_webhook_events [post]
func ApiListWebhookEvents(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListWebhookEventsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		items, err := stats.ListWebhookEvents(c.Request.Context(), req.RemoteSubscriptionID, req.Limit)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

type ListWebhookEventsRequest struct {
	RemoteSubscriptionID string `json:"remote_subscription_id"`
	Limit                int    `json:"limit"`
}

func RegisterAdminBillingRoutes(r gin.IRouter, stats *statistics.Service) {
	r.POST("/list_subscriptions", ApiListSubscriptions(stats))
	r.POST("/get_billing_statistic", ApiGetBillingStatistic(stats))
	r.POST("/list_webhook_events", ApiListWebhookEvents(stats))
}
