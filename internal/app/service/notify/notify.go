// Package notify is the boundary to the outbound notification sender.
// The reconciliation engine's responsibility ends at invoking this interface;
// delivery and retries belong to the collaborator behind it.
package notify

import (
	"context"

	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/pkg/logctx"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Notifier interface {
	// TrialWillEnd tells the user their trial is about to expire.
	TrialWillEnd(ctx context.Context, sub *models.Subscription) error
	// PaymentFailed tells the user a renewal charge did not go through.
	PaymentFailed(ctx context.Context, sub *models.Subscription) error
}

// LogNotifier records the notification intent. Swap in a real sender
// (email/queue) behind the same interface in deployments that need one.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) TrialWillEnd(ctx context.Context, sub *models.Subscription) error {
	logctx.FromCtx(ctx, n.log).Infow("notify_trial_will_end",
		"user_id", sub.UserID,
		"remote_subscription_id", sub.RemoteSubscriptionID,
		"trial_end", sub.TrialEnd,
	)
	return nil
}

func (n *LogNotifier) PaymentFailed(ctx context.Context, sub *models.Subscription) error {
	logctx.FromCtx(ctx, n.log).Infow("notify_payment_failed",
		"user_id", sub.UserID,
		"remote_subscription_id", sub.RemoteSubscriptionID,
		"tier", sub.Tier,
	)
	return nil
}

func NewNotifier(log *zap.SugaredLogger) Notifier {
	return NewLogNotifier(log)
}

var Module = fx.Options(
	fx.Provide(NewNotifier),
)
