// Package measurements orchestrates measurement sessions on top of PocketBase:
// it persists line items, keeps session and project aggregates current and
// rebuilds the per-entry rollups. Every mutation runs as
// lock(project) -> lock(session) -> transaction(mutate -> session status ->
// project summary).
package measurements

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"projectmeasure/config"
	"projectmeasure/services"
)

type Service struct {
	app               core.App
	locker            Locker
	log               logrus.FieldLogger
	defaultVAT        decimal.Decimal
	rollupConcurrency int
}

// New builds a Service and binds its record hooks on app. A nil locker falls
// back to an in-process MemoryLocker and a nil logger to the process logger.
func New(app core.App, locker Locker, logger logrus.FieldLogger, cfg config.Config) *Service {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	vat := cfg.DefaultVATRate
	if vat.IsNegative() {
		vat = services.DefaultVATRate
	}
	concurrency := cfg.RollupConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	s := &Service{
		app:               app,
		locker:            locker,
		log:               logger.WithField("module", "measurements"),
		defaultVAT:        vat,
		rollupConcurrency: concurrency,
	}
	s.bindRecordHooks()
	return s
}

// DefaultVATRate is the rate given to sessions that have no override.
func (s *Service) DefaultVATRate() decimal.Decimal {
	return s.defaultVAT
}
