package app

import (
	"time"

	"github.com/launchkit/billing/internal/app/api/server"
	"github.com/launchkit/billing/internal/app/service/auditlog"
	"github.com/launchkit/billing/internal/app/service/eventlog"
	"github.com/launchkit/billing/internal/app/service/notify"
	"github.com/launchkit/billing/internal/app/service/reconcile"
	"github.com/launchkit/billing/internal/app/service/statistics"
	"github.com/launchkit/billing/internal/platform/db"
	"github.com/launchkit/billing/internal/store/gormstore"
	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	gormstore.Module,
	server.Module,
	notify.Module,
	eventlog.Module,
	auditlog.Module,
	reconcile.Module,
	statistics.Module,
)
