package notify

import (
	"context"

	"github.com/dmitrijs2005/identityd/internal/logging"
)

// LogSender writes messages to the log instead of delivering them. The body
// is logged at debug level only since it carries the secret.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "notify")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email dispatched", "id", msg.ID, "kind", msg.Kind, "to", msg.To, "subject", msg.Subject)
	s.logger.Debug(ctx, "email body", "id", msg.ID, "html", msg.HTML)
	return nil
}
