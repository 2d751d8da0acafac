package adapters

import (
	"context"
	"fmt"

	"github.com/orris-inc/subflow/internal/application/notification/usecases"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/email"
)

// EmailDelivererAdapter joins the template renderer and an email sender into
// the deliverer the notification use cases depend on.
type EmailDelivererAdapter struct {
	renderer *email.Renderer
	sender   email.Sender
	baseURL  string
}

func NewEmailDelivererAdapter(renderer *email.Renderer, sender email.Sender, baseURL string) *EmailDelivererAdapter {
	return &EmailDelivererAdapter{
		renderer: renderer,
		sender:   sender,
		baseURL:  baseURL,
	}
}

var _ usecases.EmailDeliverer = (*EmailDelivererAdapter)(nil)

func (a *EmailDelivererAdapter) Deliver(ctx context.Context, kind vo.Kind, to usecases.Recipient, data map[string]any) (string, error) {
	msg, err := a.renderer.Render(kind, email.TemplateData{
		Name:    to.Name,
		Email:   to.Email,
		BaseURL: a.baseURL,
		Ctx:     data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	messageID, err := a.sender.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.sender.Name(), err)
	}
	return messageID, nil
}
