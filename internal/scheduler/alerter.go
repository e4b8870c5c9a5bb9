package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/notify"
)

// Alerter tells a check's owner about a status transition. Delivery is best
// effort: failures are logged and returned, never retried.
type Alerter struct {
	logger   *zap.Logger
	notifier notify.Notifier
}

func NewAlerter(logger *zap.Logger, n notify.Notifier) *Alerter {
	return &Alerter{logger: logger, notifier: n}
}

func (a *Alerter) Alert(ctx context.Context, c domain.Check, s domain.State) error {
	msg := domain.AlertMessage(c, s)
	if err := a.notifier.Send(ctx, c.OwnerContact, msg); err != nil {
		a.logger.Warn("alert_send_error",
			zap.String("check_id", c.ID),
			zap.String("state", string(s)),
			zap.Error(err))
		return err
	}
	a.logger.Info("alert_sent",
		zap.String("check_id", c.ID),
		zap.String("state", string(s)),
		zap.String("message", msg))
	return nil
}
