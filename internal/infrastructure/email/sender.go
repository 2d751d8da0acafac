// Package email renders notification templates and delivers them through
// SMTP, Postmark or a logging sink.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

var (
	ErrInvalidConfig  = errors.New("invalid email configuration")
	ErrInvalidMessage = errors.New("invalid email message")
	ErrSendFailed     = errors.New("failed to send email")
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
	Tag      string
}

func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.HTMLBody == "" && m.TextBody == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
	Name() string
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg config.EmailConfig, log logger.Interface) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
		}
		return NewSMTPSender(SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
		}), nil
	case "postmark":
		return NewPostmarkSender(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken, cfg.FromAddress, cfg.FromName)
	case "log", "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
