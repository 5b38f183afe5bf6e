package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/launchkit/billing/internal/app/service/eventlog"
	"github.com/launchkit/billing/internal/app/service/reconcile"
	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/platform/processor"
	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/logctx"
	"github.com/launchkit/billing/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// @Summary      Billing Webhook
// @Description  Ingests payment processor events. The body is signed with HMAC-SHA256 over the raw bytes, carried in the X-Processor-Signature header.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body string true "Processor event envelope"
// @Success      200  {object}  handlers.RespOK
// @Failure      400  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /billing/webhook [post]
// ApiBillingWebhook verifies, parses and dispatches one processor event.
func ApiBillingWebhook(eng *reconcile.Engine, evlog *eventlog.Service, cfg *config.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logctx.FromGin(c, log)

		// Signature is over the raw untouched body; read it before anything
		// can parse or re-serialize it.
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "failed to read body"))
			return
		}
		if err := processor.VerifySignature(body, c.GetHeader(processor.SignatureHeader), cfg.Billing.WebhookSecret); err != nil {
			reqLog.Warnw("webhook_signature_rejected", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
			return
		}

		ev, err := processor.ParseEvent(body)
		if err != nil {
			reqLog.Warnw("webhook_payload_rejected", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		traceID := c.GetString("traceID")
		saveLog := func(status models.WebhookEventLogStatus, result *datatypes.JSON) {
			if evlog == nil {
				return
			}
			evlog.Save(c.Request.Context(), &models.WebhookEventLog{
				EventID:              ev.ID,
				EventType:            ev.RawType,
				RemoteSubscriptionID: ev.RemoteSubscriptionID(),
				TraceID:              traceID,
				OccurredAt:           ev.OccurredAt,
				Data:                 datatypes.JSON(ev.Raw),
				Result:               result,
				Status:               status,
			})
		}
		saveLog(models.WebhookEventLogStatusReceived, nil)

		ctx := c.Request.Context()
		if cfg.Billing.WebhookTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Billing.WebhookTimeout)
			defer cancel()
		}

		outcome, err := eng.Dispatch(ctx, ev)
		if err != nil {
			reqLog.Errorw("webhook_handle_error", "event_id", ev.ID, "error", err.Error())
			res := mustJSON(map[string]any{"error": err.Error()})
			saveLog(models.WebhookEventLogStatusHandleFailed, &res)
			// nothing was committed; 5xx makes the sender redeliver
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		res := mustJSON(map[string]any{"outcome": outcome})
		saveLog(models.WebhookEventLogStatusHandled, &res)
		c.JSON(http.StatusOK, response.OKT(gin.H{"outcome": outcome}))
	}
}

func mustJSON(v any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func RegisterBillingWebhookRoutes(r gin.IRouter, eng *reconcile.Engine, evlog *eventlog.Service, cfg *config.Config, log *zap.SugaredLogger) {
	r.POST("/billing/webhook", ApiBillingWebhook(eng, evlog, cfg, log))
}
