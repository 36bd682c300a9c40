package mail

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the logger instead of delivering them. Used in
// development when no mail provider is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With("component", "mail")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "mail not delivered (log driver)",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
		"body", msg.HTML,
	)
	return nil
}
