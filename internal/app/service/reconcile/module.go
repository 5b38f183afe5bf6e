package reconcile

import "go.uber.org/fx"

// Module exposes the reconciliation engine via Fx.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Provide(NewDefaultMetrics),
)
