package notify

import (
	"context"

	"go.uber.org/zap"
)

// Log writes alerts to the application log. It is the fallback when no
// external channel is configured.
type Log struct {
	L *zap.Logger
}

func NewLog(l *zap.Logger) *Log { return &Log{L: l} }

func (n *Log) Send(_ context.Context, contact, message string) error {
	n.L.Warn("alert", zap.String("contact", contact), zap.String("message", message))
	return nil
}
