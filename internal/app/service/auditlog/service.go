package auditlog

import (
	"context"

	"github.com/launchkit/billing/internal/app/service/reconcile"
	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/pkg/logctx"
	"github.com/launchkit/billing/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service persists subscription change audit rows. Writes are asynchronous
// and best effort; an audit failure is logged but never fails reconciliation.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

func (s *Service) Record(ctx context.Context, entry *models.SubscriptionLog) {
	go func() {
		if entry == nil {
			return
		}
		if entry.ID == "" {
			entry.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(s *Service) reconcile.AuditRecorder { return s }),
)
