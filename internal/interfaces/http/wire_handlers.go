package http

import (
	"fmt"

	"github.com/orris-inc/subflow/internal/interfaces/http/handlers"
)

type allHandlers struct {
	webhookHandler *handlers.WebhookHandler
	healthHandler  *handlers.HealthHandler
}

func (c *Container) initHandlers() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	c.hdlrs = &allHandlers{
		webhookHandler: handlers.NewWebhookHandler(c.ucs.processWebhook, c.cfg.Billing.WebhookTimeout, c.log),
		healthHandler:  handlers.NewHealthHandler(sqlDB, c.JobsEnabled, c.log),
	}
	return nil
}
