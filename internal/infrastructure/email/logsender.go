package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/orris-inc/subflow/internal/shared/logger"
	"github.com/orris-inc/subflow/internal/shared/utils"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger logger.Interface
}

func NewLogSender(log logger.Interface) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Name() string {
	return "log"
}

func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	s.logger.Infow("email not delivered, log provider active",
		"message_id", id,
		"to", utils.MaskEmail(msg.To),
		"subject", msg.Subject,
		"tag", msg.Tag,
	)
	s.logger.Debugw("email body", "message_id", id, "text", msg.TextBody)
	return id, nil
}
